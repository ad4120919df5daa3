package logic

// Notice is a status notification emitted to the UI and telemetry.
// Message renders the human text; the wording is relied on by existing
// dashboards, so it must not change.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeInitializing
	NoticeReady
	NoticeValveOpened
	NoticeValveClosed
	NoticeScheduleInhibit
	NoticeLimitInhibit
	NoticeLimitExceeded
	NoticeScheduleClosed
	NoticeLimitReset
	NoticeSenseFault
	NoticeDriveFault
	NoticeSensorFailure
	NoticeSensorReadFailed
	NoticeInvalidMode
	NoticeModeAutomatic
	NoticeModeManual
)

var noticeMessages = map[Notice]string{
	NoticeInitializing:     "System initializing...",
	NoticeReady:            "Initialization complete",
	NoticeValveOpened:      "Valve open",
	NoticeValveClosed:      "Valve closed",
	NoticeScheduleInhibit:  "Operation inhibited by schedule",
	NoticeLimitInhibit:     "Operation inhibited by time limit",
	NoticeLimitExceeded:    "Time limit exceeded: Valve closed",
	NoticeScheduleClosed:   "Outside operating hours: Valve closed",
	NoticeLimitReset:       "Time limit reset",
	NoticeSenseFault:       "Error: Supply voltage sense fault",
	NoticeDriveFault:       "Error: Valve drive failed",
	NoticeSensorFailure:    "Sensor failure: Thermostat mode disabled",
	NoticeSensorReadFailed: "Error: Temperature sensor read failed",
	NoticeInvalidMode:      "Error: Invalid mode",
	NoticeModeAutomatic:    "Mode: Automatic",
	NoticeModeManual:       "Mode: Manual",
}

// Message returns the human-readable text of the notice.
func (n Notice) Message() string {
	return noticeMessages[n]
}

func (n Notice) String() string {
	return n.Message()
}

// IsError reports whether the notice describes a fault. The UI colours
// these differently.
func (n Notice) IsError() bool {
	switch n {
	case NoticeSenseFault, NoticeDriveFault, NoticeSensorFailure, NoticeSensorReadFailed, NoticeInvalidMode:
		return true
	}
	return false
}
