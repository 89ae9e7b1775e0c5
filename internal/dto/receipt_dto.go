package dto

// RequeueFilter is bound from query string of POST /v1/receipts/dlq/requeue.
type RequeueFilter struct {
	Limit int `form:"limit,default=50" validate:"min=1,max=500"`
}

type DLQStatusResponse struct {
	Queue  string `json:"queue"`
	Length int64  `json:"length"`
}

type RequeueResponse struct {
	Queue     string `json:"queue"`
	Requeued  int    `json:"requeued"`
	Remaining int64  `json:"remaining"`
}
