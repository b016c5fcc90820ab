package protocol

import "encoding/json"

const Version = "1.0"

// Admin request types.
const (
	TypeGetRoomData = "getRoomData"
	TypeGetScript   = "getScript"
	TypeSetScript   = "setScript"
	TypeRegister    = "register"
	TypeLogin       = "login"
)

// RequestTypes lists every request the admin endpoint accepts.
var RequestTypes = []string{TypeGetRoomData, TypeGetScript, TypeSetScript, TypeRegister, TypeLogin}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
