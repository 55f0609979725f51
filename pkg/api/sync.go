package api

// Row is the wire form of one entity record. Timestamps are unix
// milliseconds. UpdatedAt and DeviceID belong to the writer that
// produced the accepted version and drive conflict resolution;
// ServerUpdatedAt is assigned by the server on every accepted change
// and drives cursor filtering.
type Row struct {
	Fields          map[string]any `json:"fields"`
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	DeviceID        string         `json:"device_id"`
	CreatedAt       int64          `json:"created_at"`
	UpdatedAt       int64          `json:"updated_at"`
	ServerUpdatedAt int64          `json:"server_updated_at"`
	Deleted         bool           `json:"deleted"`
}

// Change is the coalesced outcome of one entity's queued operations.
// Exactly one of Create/Delete is set, or any combination of Set and
// Increment. Increment fields are carried as deltas so the server can
// apply them additively instead of overwriting.
type Change struct {
	Create    map[string]any     `json:"create,omitempty"`
	Set       map[string]any     `json:"set,omitempty"`
	Increment map[string]float64 `json:"increment,omitempty"`
	EntityID  string             `json:"entity_id"`
	DeviceID  string             `json:"device_id"`
	UpdatedAt int64              `json:"updated_at"`
	Delete    bool               `json:"delete,omitempty"`
}

// PushRequest carries one or more entity changes for a single table.
type PushRequest struct {
	Changes []Change `json:"changes"`
}

// PushResponse reports the rows as stored after applying a push.
type PushResponse struct {
	Rows       []Row `json:"rows"`
	ServerTime int64 `json:"server_time"`
}

// PullResponse returns rows changed since the requested cursor.
type PullResponse struct {
	Rows       []Row `json:"rows"`
	ServerTime int64 `json:"server_time"`
}

// ErrorResponse is the body of any non-2xx server reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
