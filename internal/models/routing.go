package models

import "time"

// RoutingStage identifies the pipeline stage at which a routing outcome was
// determined.
type RoutingStage string

const (
	StageFetch             RoutingStage = "fetch"
	StageValidate          RoutingStage = "validate"
	StageCheckInventory    RoutingStage = "check_inventory"
	StageTransform         RoutingStage = "transform"
	StageCreateFulfillment RoutingStage = "create_fulfillment"
	StageDone              RoutingStage = "done"
)

// RoutingResult is the per-order outcome of a pipeline run. Exactly one of
// FulfillmentOrderID (success) or Error (failure) is set; Stage records where
// the outcome was determined either way.
type RoutingResult struct {
	OrderID            string       `json:"orderId"`
	Success            bool         `json:"success"`
	Stage              RoutingStage `json:"stage"`
	FulfillmentOrderID string       `json:"fulfillmentOrderId,omitempty"`
	ErrorCode          string       `json:"errorCode,omitempty"`
	Error              string       `json:"error,omitempty"`
	Warnings           []string     `json:"warnings,omitempty"`
	CompletedAt        time.Time    `json:"completedAt"`
}

// BatchRoutingReport is the structured report returned by batch routing.
// Individual order failures never abort the batch; they are accumulated here.
type BatchRoutingReport struct {
	Total        int             `json:"total"`
	SuccessCount int             `json:"successCount"`
	FailedCount  int             `json:"failedCount"`
	Results      []RoutingResult `json:"results"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

// Add records one per-order result in the report.
func (r *BatchRoutingReport) Add(res RoutingResult) {
	r.Results = append(r.Results, res)
	r.Total = len(r.Results)
	if res.Success {
		r.SuccessCount++
	} else {
		r.FailedCount++
	}
}
