package h02

import (
	"strings"
	"time"

	"trackgate/internal/core/model"
)

// commandWords maps gateway actions to H02 instruction words and their
// fixed leading arguments.
var commandWords = map[string][]string{
	model.ActionAlarmOff: {"SCF", "0", "0"},
	model.ActionReset:    {"R1"},
	model.ActionInterval: {"S71", "22"},
}

// EncodeCommand builds *HQ,<imei>,<word>,<hhmmss>,<args>#. Actions without
// a mapping are sent verbatim as the instruction word.
func EncodeCommand(imei, command string, args []string, now time.Time) string {
	word := []string{strings.ToUpper(command)}
	if w, ok := commandWords[command]; ok {
		word = w
	}

	fields := []string{"*HQ", imei, word[0], now.UTC().Format("150405")}
	fields = append(fields, word[1:]...)
	fields = append(fields, args...)
	return strings.Join(fields, ",") + string(endByte)
}
