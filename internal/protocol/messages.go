package protocol

import "encoding/json"

// Request is any admin request. Which fields are set depends on Type; the schemas enforce it.
type Request struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Room   string `json:"room,omitempty"`
	Player string `json:"player,omitempty"`
	Script string `json:"script,omitempty"`
}

// Response answers one request. Code is set exactly when OK is false.
type Response struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	OK    bool            `json:"ok"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ScriptData is the payload of getScript.
type ScriptData struct {
	Player string `json:"player"`
	Script string `json:"script"`
}

// PlayerData is the payload of login and register.
type PlayerData struct {
	Player string `json:"player"`
	Time   uint64 `json:"time"`
}

func OK(req Request, data any) (Response, error) {
	resp := Response{Type: req.Type, ID: req.ID, OK: true}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Response{}, err
		}
		resp.Data = b
	}
	return resp, nil
}

func Fail(req Request, code, msg string) Response {
	return Response{Type: req.Type, ID: req.ID, Code: code, Error: msg}
}
