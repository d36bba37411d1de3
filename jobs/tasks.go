package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecapWarmup rebuilds facturation recaps to warm the cache.
	TaskRecapWarmup = "facturation:recap_warmup"
)

// RecapWarmupPayload selects the recaps to rebuild. An empty Years list
// means every year that has records; ChantierID zero means every chantier.
type RecapWarmupPayload struct {
	Years      []int `json:"years,omitempty"`
	ChantierID int64 `json:"chantier_id,omitempty"`
}

// NewRecapWarmupTask constructs an Asynq task.
func NewRecapWarmupTask(payload RecapWarmupPayload, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecapWarmup, data, opts...), nil
}
