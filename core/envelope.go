package core

// Envelope is the single response shape of the HTTP API.
type Envelope struct {
	Success    bool              `json:"success"`
	Data       interface{}       `json:"data,omitempty"`
	Pagination *PageMeta         `json:"pagination,omitempty"`
	Message    string            `json:"message,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func OK(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

func OKPage(data interface{}, meta PageMeta) Envelope {
	return Envelope{Success: true, Data: data, Pagination: &meta}
}

func OKMessage(msg string) Envelope {
	return Envelope{Success: true, Message: msg}
}

func Fail(msg string, fields ...map[string]string) Envelope {
	env := Envelope{Message: msg}
	if len(fields) > 0 {
		env.Errors = fields[0]
	}
	return env
}
