package database

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Bill struct {
	ID                  uuid.UUID          `json:"id"`
	InvoiceNumber       string             `json:"invoice_number"`
	OrderID             uuid.UUID          `json:"order_id"`
	CustomerID          pgtype.UUID        `json:"customer_id"`
	TotalAmount         pgtype.Numeric     `json:"total_amount"`
	Cgst                pgtype.Numeric     `json:"cgst"`
	Sgst                pgtype.Numeric     `json:"sgst"`
	Igst                pgtype.Numeric     `json:"igst"`
	DiscountAmount      pgtype.Numeric     `json:"discount_amount"`
	GrandTotal          pgtype.Numeric     `json:"grand_total"`
	PaymentStatus       string             `json:"payment_status"`
	PaidAmount          pgtype.Numeric     `json:"paid_amount"`
	PendingAmount       pgtype.Numeric     `json:"pending_amount"`
	CompanyGstin        string             `json:"company_gstin"`
	CustomerGstin       pgtype.Text        `json:"customer_gstin"`
	PlaceOfSupply       string             `json:"place_of_supply"`
	IsInterState        bool               `json:"is_inter_state"`
	CombinedBillGroupID pgtype.UUID        `json:"combined_bill_group_id"`
	GeneratedAt         pgtype.Timestamptz `json:"generated_at"`
}

type Customer struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Phone     pgtype.Text        `json:"phone"`
	Gstin     pgtype.Text        `json:"gstin"`
	StateCode pgtype.Text        `json:"state_code"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type Ingredient struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	Unit              string             `json:"unit"`
	StockQuantity     pgtype.Numeric     `json:"stock_quantity"`
	LowStockThreshold pgtype.Numeric     `json:"low_stock_threshold"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}

type MenuIngredient struct {
	MenuItemID       uuid.UUID      `json:"menu_item_id"`
	IngredientID     uuid.UUID      `json:"ingredient_id"`
	QuantityRequired pgtype.Numeric `json:"quantity_required"`
}

type MenuItem struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Price       pgtype.Numeric     `json:"price"`
	TaxRate     pgtype.Numeric     `json:"tax_rate"`
	IsAvailable bool               `json:"is_available"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type MenuModifier struct {
	ID         uuid.UUID      `json:"id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	IsActive   bool           `json:"is_active"`
}

type Order struct {
	ID                  uuid.UUID          `json:"id"`
	TableID             pgtype.UUID        `json:"table_id"`
	Status              string             `json:"status"`
	TotalAmount         pgtype.Numeric     `json:"total_amount"`
	CombinedBillGroupID pgtype.UUID        `json:"combined_bill_group_id"`
	BillSeq             int64              `json:"bill_seq"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
}

type OrderLine struct {
	ID             uuid.UUID          `json:"id"`
	OrderID        uuid.UUID          `json:"order_id"`
	MenuItemID     uuid.UUID          `json:"menu_item_id"`
	Quantity       int32              `json:"quantity"`
	UnitPrice      pgtype.Numeric     `json:"unit_price"`
	ModifiersTotal pgtype.Numeric     `json:"modifiers_total"`
	LineTotal      pgtype.Numeric     `json:"line_total"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type OrderLineModifier struct {
	ID          uuid.UUID      `json:"id"`
	OrderLineID uuid.UUID      `json:"order_line_id"`
	ModifierID  uuid.UUID      `json:"modifier_id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
}

type Payment struct {
	ID         uuid.UUID          `json:"id"`
	BillID     uuid.UUID          `json:"bill_id"`
	CustomerID pgtype.UUID        `json:"customer_id"`
	Amount     pgtype.Numeric     `json:"amount"`
	Mode       string             `json:"mode"`
	Status     string             `json:"status"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

type RestaurantTable struct {
	ID          uuid.UUID          `json:"id"`
	TableNumber int32              `json:"table_number"`
	Capacity    int32              `json:"capacity"`
	Location    pgtype.Text        `json:"location"`
	Occupied    bool               `json:"occupied"`
	BillSeq     int64              `json:"bill_seq"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
	OpenOrderID pgtype.UUID        `json:"open_order_id"`
}
