package submission

import "github.com/google/uuid"

// Submission is one inbound event: field data plus the context shared by every
// route that processes it.
type Submission struct {
	ID      string
	Data    *Data
	Context Context
}

func New(data *Data) *Submission {
	if data == nil {
		data = NewData()
	}
	return &Submission{
		ID:      uuid.NewString(),
		Data:    data,
		Context: NewBag(),
	}
}
