package api

type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

func NewModelList(models []Model) ModelList {
	if models == nil {
		models = []Model{}
	}
	return ModelList{Object: "list", Data: models}
}

// ModelQuery selects what /v1/models lists.
type ModelQuery struct {
	// Provider is the registered provider name; empty means the primary provider.
	Provider string
	// Aggregate lists every registered provider.
	Aggregate bool
}
