// Package message implements the action-tagged request protocol shared by the
// HTTP API and the extension-style clients: decode, dispatch, respond.
package message

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
)

// Action names.
const (
	ActionGetProfile     = "getProfile"
	ActionSetProfile     = "setProfile"
	ActionGetAllProfiles = "getAllProfiles"
	ActionSaveProfile    = "saveProfile"
	ActionDeleteProfile  = "deleteProfile"
	ActionExportProfiles = "exportProfiles"
	ActionImportProfiles = "importProfiles"
	ActionAnalyzeScreen  = "analyzeScreen"
	ActionAskQuestion    = "askQuestion"
	ActionGetDebugInfo   = "getDebugInfo"
	ActionHistory        = "history"
)

// aliases maps legacy action names onto their canonical names.
var aliases = map[string]string{
	"getProfiles":      ActionGetAllProfiles,
	"screenshotAndOCR": ActionAnalyzeScreen,
	"askAI":            ActionAskQuestion,
}

// Request is one decoded message. The concrete type identifies the action.
type Request interface {
	Action() string
}

type GetProfile struct{}

type SetProfile struct {
	ProfileName string `json:"profileName"`
}

type GetAllProfiles struct{}

type SaveProfile struct {
	Profile *profile.Profile `json:"profile"`
}

type DeleteProfile struct {
	ProfileName string `json:"profileName"`
}

type ExportProfiles struct{}

type ImportProfiles struct {
	Data string `json:"data"`
}

type AnalyzeScreen struct{}

// AskQuestion asks about the session's last recognized text. OCRText, when
// present, replaces that text first.
type AskQuestion struct {
	Question string  `json:"question"`
	OCRText  *string `json:"ocrText,omitempty"`
}

// GetDebugInfo extracts text from HTML with the current profile's filters.
type GetDebugInfo struct {
	HTML string `json:"html"`
}

type History struct {
	Clear bool `json:"clear,omitempty"`
}

func (GetProfile) Action() string     { return ActionGetProfile }
func (SetProfile) Action() string     { return ActionSetProfile }
func (GetAllProfiles) Action() string { return ActionGetAllProfiles }
func (SaveProfile) Action() string    { return ActionSaveProfile }
func (DeleteProfile) Action() string  { return ActionDeleteProfile }
func (ExportProfiles) Action() string { return ActionExportProfiles }
func (ImportProfiles) Action() string { return ActionImportProfiles }
func (AnalyzeScreen) Action() string  { return ActionAnalyzeScreen }
func (AskQuestion) Action() string    { return ActionAskQuestion }
func (GetDebugInfo) Action() string   { return ActionGetDebugInfo }
func (History) Action() string        { return ActionHistory }

// Canonical resolves aliases. Unknown names are returned unchanged.
func Canonical(action string) string {
	if c, ok := aliases[action]; ok {
		return c
	}
	return action
}

type envelope struct {
	Action string `json:"action"`
}

// Decode parses a JSON message into its Request variant.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid message: %v", err))
	}

	action := strings.TrimSpace(env.Action)
	if action == "" {
		return nil, errors.NewInvalidRequest("action is required")
	}

	var req Request
	switch Canonical(action) {
	case ActionGetProfile:
		req = &GetProfile{}
	case ActionSetProfile:
		req = &SetProfile{}
	case ActionGetAllProfiles:
		req = &GetAllProfiles{}
	case ActionSaveProfile:
		req = &SaveProfile{}
	case ActionDeleteProfile:
		req = &DeleteProfile{}
	case ActionExportProfiles:
		req = &ExportProfiles{}
	case ActionImportProfiles:
		req = &ImportProfiles{}
	case ActionAnalyzeScreen:
		req = &AnalyzeScreen{}
	case ActionAskQuestion:
		req = &AskQuestion{}
	case ActionGetDebugInfo:
		req = &GetDebugInfo{}
	case ActionHistory:
		req = &History{}
	default:
		return nil, errors.NewUnknownAction(action)
	}

	if err := json.Unmarshal(data, req); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid %s message: %v", req.Action(), err))
	}
	return req, nil
}

// Response is the reply envelope: {"success": true, ...payload} or
// {"success": false, "error": "...", "code": "..."}.
type Response map[string]any

// Success builds a successful response carrying payload's keys.
func Success(payload map[string]any) Response {
	resp := Response{"success": true}
	for k, v := range payload {
		resp[k] = v
	}
	return resp
}

// Failure converts err into a failure response.
func Failure(err error) Response {
	bErr := errors.Wrap(err)
	resp := Response{
		"success": false,
		"error":   bErr.Message,
		"code":    string(bErr.Code),
	}
	if len(bErr.Details) > 0 {
		resp["details"] = bErr.Details
	}
	return resp
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	ok, _ := r["success"].(bool)
	return ok
}
