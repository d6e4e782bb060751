// internal/storage/models/execution.go
package models

import "time"

// Execution statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Execution is one audited route execution, failure or cancel.
type Execution struct {
	BaseModel
	RequestID      string `gorm:"index;type:varchar(64)" json:"request_id"`
	Owner          string `gorm:"index;type:varchar(44)" json:"owner"`
	TrackedAccount string `gorm:"type:varchar(44)" json:"tracked_account"`
	Route          string `gorm:"type:text" json:"route"`
	Status         string `gorm:"index;not null;type:varchar(20)" json:"status"`

	StartAmount   uint64 `json:"start_amount"`
	FinalAmount   uint64 `json:"final_amount"`
	Profit        uint64 `json:"profit"`
	ProfitBps     uint64 `json:"profit_bps"`
	StepsExecuted uint8  `json:"steps_executed"`

	ErrorCode    uint32 `json:"error_code,omitempty"`
	ErrorName    string `gorm:"type:varchar(40)" json:"error_name,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
	FailedStep   int    `json:"failed_step"`
	Reason       string `gorm:"type:text" json:"reason,omitempty"`

	ExecutedAt time.Time       `gorm:"index;not null" json:"executed_at"`
	Steps      []ExecutionStep `gorm:"foreignKey:ExecutionID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
}

// ExecutionStep is one hop of a succeeded execution.
type ExecutionStep struct {
	ID           uint   `gorm:"primarykey" json:"-"`
	ExecutionID  uint   `gorm:"index;not null" json:"-"`
	Index        int    `gorm:"column:step_index;not null" json:"index"`
	Venue        string `gorm:"type:varchar(20);not null" json:"venue"`
	InputMint    string `gorm:"type:varchar(44)" json:"input_mint"`
	OutputMint   string `gorm:"type:varchar(44)" json:"output_mint"`
	InputAmount  uint64 `json:"input_amount"`
	MinOutput    uint64 `json:"min_output"`
	OutputAmount uint64 `json:"output_amount"`
	SlippageBps  uint16 `json:"slippage_bps"`
}
