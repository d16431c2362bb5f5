// Package invoice issues unique, roughly time-ordered invoice numbers.
package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sony/sonyflake"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Numberer hands out invoice numbers of the form INV-<base36 id>.
type Numberer struct {
	node *sonyflake.Sonyflake
}

// NewNumberer creates a Numberer. machineID must differ between running
// instances that share a database.
func NewNumberer(machineID uint16) (*Numberer, error) {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: epoch,
		MachineID: func() (uint16, error) { return machineID, nil },
	})
	if sf == nil {
		return nil, fmt.Errorf("sonyflake not created")
	}
	return &Numberer{node: sf}, nil
}

// Next returns a new invoice number.
func (n *Numberer) Next() (string, error) {
	id, err := n.node.NextID()
	if err != nil {
		return "", fmt.Errorf("next invoice id: %w", err)
	}
	return "INV-" + strings.ToUpper(strconv.FormatUint(id, 36)), nil
}
