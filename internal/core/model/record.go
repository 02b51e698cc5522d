package model

// Command kinds carried by a Record from an adapter to a device session.
const (
	CmdLogin  = "LOGIN"
	CmdPing   = "PING"
	CmdTrack  = "TRACK"
	CmdObd    = "OBD"
	CmdAlarm  = "ALARM"
	CmdTmpLog = "TMPLOG" // speculative login, the session activates before the backend answers
	CmdStatic = "STATIC"
	CmdLogout = "LOGOUT"
)

// Commands sent to devices through the dispatch queue.
const (
	ActionAlarmOff = "ALARM_OFF"
	ActionReset    = "RESET"
	ActionInterval = "INTERVAL"
)

// Record is one normalized input handed by an adapter to a device session.
type Record struct {
	Cmd      string                 `json:"cmd"`
	DevID    string                 `json:"devId"`
	Name     string                 `json:"name,omitempty"`
	Position *Position              `json:"position,omitempty"`
	Static   *Static                `json:"static,omitempty"`
	Alarm    string                 `json:"alarm,omitempty"`
	Obd      map[string]interface{} `json:"obd,omitempty"`
	Raw      string                 `json:"raw,omitempty"`
}
