package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusCreated    = "CREATED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

const (
	BillStatusPending      = "PENDING"
	BillStatusPartial      = "PARTIAL"
	BillStatusPaid         = "PAID"
	BillStatusOverdue      = "OVERDUE"
	BillStatusCombined     = "COMBINED"
	BillStatusCombinedBill = "COMBINED_BILL"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	StaffRoleManager = "MANAGER"
	StaffRoleCashier = "CASHIER"
	StaffRoleWaiter  = "WAITER"
	StaffRoleKitchen = "KITCHEN"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentModeCash = "CASH"
	PaymentModeCard = "CARD"
	PaymentModeUPI  = "UPI"
)
