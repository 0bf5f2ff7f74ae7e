package http

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// APIResponse400Err represents 400 error response.
type APIResponse400Err struct {
	Status  int        `json:"status" example:"400"`
	Message string     `json:"message" example:"Bad Request"`
	Data    []AppError `json:"data,omitempty"`
}

// APIResponse422Err represents 422 error response.
type APIResponse422Err struct {
	Status  int               `json:"status" example:"422"`
	Message string            `json:"message" example:"Unprocessable Entity"`
	Data    []ValidationError `json:"data,omitempty"`
}

// APIResponse503Err represents 503 error response.
type APIResponse503Err struct {
	Status  int        `json:"status" example:"503"`
	Message string     `json:"message" example:"Service Unavailable"`
	Data    []AppError `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_GTE"`
	Field   string                 `json:"field,omitempty" example:"product_weight_g"`
	Message string                 `json:"message,omitempty" example:"product_weight_g must be greater than or equal to 0"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
