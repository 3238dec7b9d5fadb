// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "github.com/bureau-foundation/portal/lib/codec"

// Request is a CBOR-encoded request to the portal's client socket.
// One struct carries the fields of every action; unused fields are
// omitted on the wire.
type Request struct {
	// Action is the request type: "open-file", "save-file",
	// "screenshot", "pick-color", "get-user-info",
	// "choose-application", "inhibit", "uninhibit",
	// "request-background", "read-setting", "write-setting",
	// "await", or "cancel".
	Action string `cbor:"action"`

	// ParentWindow identifies the client window the request
	// originates from. Opaque to the portal except for cancellation:
	// when the shell reports the window destroyed, every in-flight
	// request carrying this reference is cancelled.
	ParentWindow string `cbor:"parent_window,omitempty"`

	// Title is the dialog title for chooser-style requests.
	Title string `cbor:"title,omitempty"`

	// Reason is the caller-supplied justification shown to the user
	// (get-user-info, request-background, inhibit).
	Reason string `cbor:"reason,omitempty"`

	// File chooser fields (open-file, save-file).
	Multiple      bool         `cbor:"multiple,omitempty"`
	Directory     bool         `cbor:"directory,omitempty"`
	CurrentFolder string       `cbor:"current_folder,omitempty"`
	CurrentFile   string       `cbor:"current_file,omitempty"`
	CurrentName   string       `cbor:"current_name,omitempty"`
	Filters       []FileFilter `cbor:"filters,omitempty"`

	// Screenshot fields. Mode is "fullscreen", "output", "window",
	// or "area"; Interactive delegates area selection to the user.
	Mode          string `cbor:"mode,omitempty"`
	Interactive   bool   `cbor:"interactive,omitempty"`
	AllowMonitors bool   `cbor:"allow_monitors,omitempty"`
	AllowWindows  bool   `cbor:"allow_windows,omitempty"`
	Output        string `cbor:"output,omitempty"`
	Window        string `cbor:"window,omitempty"`
	Area          *Rect  `cbor:"area,omitempty"`

	// Application chooser fields.
	ContentType   string   `cbor:"content_type,omitempty"`
	Choices       []string `cbor:"choices,omitempty"`
	RecentChoices []string `cbor:"recent_choices,omitempty"`

	// Inhibit fields.
	Flags        InhibitFlags `cbor:"flags,omitempty"`
	InhibitionID string       `cbor:"inhibition_id,omitempty"`

	// Background execution fields.
	Command []string `cbor:"command,omitempty"`

	// Settings fields.
	Namespace string           `cbor:"namespace,omitempty"`
	Key       string           `cbor:"key,omitempty"`
	Value     codec.RawMessage `cbor:"value,omitempty"`

	// Handle selects the in-flight request for await and cancel.
	Handle string `cbor:"handle,omitempty"`
}

// FileFilter restricts a file chooser to matching entries.
type FileFilter struct {
	Name     string   `cbor:"name"`
	Patterns []string `cbor:"patterns"`
}

// Rect is a rectangle in virtual-screen coordinates.
type Rect struct {
	X      int `cbor:"x"`
	Y      int `cbor:"y"`
	Width  int `cbor:"width"`
	Height int `cbor:"height"`
}

// InhibitFlags are the four independent session operations an
// inhibition blocks.
type InhibitFlags struct {
	Logout     bool `cbor:"logout,omitempty"`
	SwitchUser bool `cbor:"switch_user,omitempty"`
	Suspend    bool `cbor:"suspend,omitempty"`
	Idle       bool `cbor:"idle,omitempty"`
}

// SubmitResponse acknowledges an asynchronous capability request. The
// caller awaits the outcome with the "await" action.
type SubmitResponse struct {
	Handle string `cbor:"handle"`
}

// AwaitResponse is the terminal outcome of an asynchronous request.
// State is "resolved" or "cancelled". On success, Result holds the
// capability-specific result value; on failure, Code and Error carry
// the error.
type AwaitResponse struct {
	State  string           `cbor:"state"`
	Code   string           `cbor:"code,omitempty"`
	Error  string           `cbor:"error,omitempty"`
	Result codec.RawMessage `cbor:"result,omitempty"`
}

// OpenFileResult is the result of an open-file request: the chosen
// files as file:// URIs.
type OpenFileResult struct {
	URIs []string `cbor:"uris"`
}

// SaveFileResult is the result of a save-file request.
type SaveFileResult struct {
	URI string `cbor:"uri"`
}

// ScreenshotResult is the result of a screenshot request: where the
// capture was persisted, and its pixel dimensions.
type ScreenshotResult struct {
	URI    string `cbor:"uri"`
	Width  int    `cbor:"width"`
	Height int    `cbor:"height"`
}

// ColorResult is the result of a pick-color request. Channels are in
// the range [0, 1].
type ColorResult struct {
	Red   float64 `cbor:"red"`
	Green float64 `cbor:"green"`
	Blue  float64 `cbor:"blue"`
}

// UserInfoResult is the result of a get-user-info request.
type UserInfoResult struct {
	Name           string `cbor:"name"`
	Username       string `cbor:"username"`
	Avatar         string `cbor:"avatar,omitempty"`
	Locale         string `cbor:"locale,omitempty"`
	KeyboardLayout string `cbor:"keyboard_layout,omitempty"`
	SessionID      string `cbor:"session_id,omitempty"`
}

// ChooseApplicationResult is the result of a choose-application
// request.
type ChooseApplicationResult struct {
	AppID string `cbor:"app_id"`
}

// BackgroundResult is the result of a request-background request:
// confirmation that the command was launched for the application.
type BackgroundResult struct {
	AppID string `cbor:"app_id"`
}

// InhibitResponse carries the id of a freshly registered inhibition.
// Inhibit is synchronous: no handle, no await.
type InhibitResponse struct {
	ID string `cbor:"id"`
}

// ReadSettingResponse carries the value of a read-setting request.
type ReadSettingResponse struct {
	Value codec.RawMessage `cbor:"value"`
}

// --- Consent socket (daemon → consent agent) ---

// ConsentRequest is sent by the daemon to the consent agent socket.
// Action is "confirm", "pick-open-files", "pick-save-file",
// "choose-application", "pick-color", or "select-area".
type ConsentRequest struct {
	Action string `cbor:"action"`

	// AppID is the application the decision concerns, shown to the
	// user so they know who is asking.
	AppID string `cbor:"app_id"`

	// Title and Body are the prompt text for confirm dialogs.
	Title string `cbor:"title,omitempty"`
	Body  string `cbor:"body,omitempty"`

	// File picker fields.
	StartDir      string       `cbor:"start_dir,omitempty"`
	SuggestedName string       `cbor:"suggested_name,omitempty"`
	Multiple      bool         `cbor:"multiple,omitempty"`
	Directory     bool         `cbor:"directory,omitempty"`
	Filters       []FileFilter `cbor:"filters,omitempty"`

	// Application chooser fields.
	ContentType string         `cbor:"content_type,omitempty"`
	Candidates  []AppCandidate `cbor:"candidates,omitempty"`
	Default     string         `cbor:"default,omitempty"`
}

// AppCandidate is one selectable entry in an application chooser.
type AppCandidate struct {
	ID   string `cbor:"id"`
	Name string `cbor:"name,omitempty"`
}

// ConfirmResponse is the agent's answer to a confirm request.
type ConfirmResponse struct {
	Allowed bool `cbor:"allowed"`
}

// PickFilesResponse is the agent's answer to a pick-open-files
// request. Empty Paths means the dialog was dismissed.
type PickFilesResponse struct {
	Paths []string `cbor:"paths"`
}

// PickSaveResponse is the agent's answer to a pick-save-file request.
// Empty Path means the dialog was dismissed.
type PickSaveResponse struct {
	Path string `cbor:"path"`
}

// ChooseResponse is the agent's answer to a choose-application
// request. Empty AppID means the chooser was dismissed.
type ChooseResponse struct {
	AppID string `cbor:"app_id"`
}

// PickColorResponse is the agent's answer to a pick-color request.
type PickColorResponse struct {
	Red   float64 `cbor:"red"`
	Green float64 `cbor:"green"`
	Blue  float64 `cbor:"blue"`
}

// SelectAreaResponse is the agent's answer to a select-area request.
type SelectAreaResponse struct {
	Area Rect `cbor:"area"`
}

// --- Admin socket (portalctl, desktop shell) ---

// AdminRequest is a CBOR-encoded request to the portal's admin
// socket. Action is "status", "list-grants", "list-sessions",
// "list-inhibitions", "uninhibit", "window-closed", or "session-end".
type AdminRequest struct {
	Action string `cbor:"action"`

	// AppID scopes list-grants to one application, names the session
	// to end, or owns the closed window.
	AppID string `cbor:"app_id,omitempty"`

	// ParentWindow is the destroyed window for window-closed.
	ParentWindow string `cbor:"parent_window,omitempty"`

	// InhibitionID selects the inhibition for uninhibit.
	InhibitionID string `cbor:"inhibition_id,omitempty"`
}

// StatusResponse summarizes the daemon's state.
type StatusResponse struct {
	UptimeSeconds   int64 `cbor:"uptime_seconds"`
	Sessions        int   `cbor:"sessions"`
	PendingRequests int   `cbor:"pending_requests"`
	Inhibitions     int   `cbor:"inhibitions"`
}

// AppGrants is one application's durable permission record, for
// inspection.
type AppGrants struct {
	AppID      string            `cbor:"app_id"`
	Filesystem []FilesystemGrant `cbor:"filesystem,omitempty"`
	Background bool              `cbor:"background,omitempty"`
	Screenshot bool              `cbor:"screenshot,omitempty"`
	Settings   map[string]string `cbor:"settings,omitempty"`
}

// FilesystemGrant is one filesystem prefix grant, for inspection.
type FilesystemGrant struct {
	Path      string `cbor:"path"`
	Access    string `cbor:"access"`
	GrantedAt int64  `cbor:"granted_at"`
}

// GrantsResponse lists permission records.
type GrantsResponse struct {
	Apps []AppGrants `cbor:"apps"`
}

// SessionInfo describes one active client session. Granted lists the
// capability keys consent has allowed during this session.
type SessionInfo struct {
	ID        string   `cbor:"id"`
	AppID     string   `cbor:"app_id"`
	CreatedAt int64    `cbor:"created_at"`
	LastSeen  int64    `cbor:"last_seen"`
	Granted   []string `cbor:"granted,omitempty"`
}

// SessionsResponse lists active sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `cbor:"sessions"`
}

// InhibitionInfo describes one active inhibition.
type InhibitionInfo struct {
	ID        string       `cbor:"id"`
	AppID     string       `cbor:"app_id"`
	Reason    string       `cbor:"reason,omitempty"`
	Flags     InhibitFlags `cbor:"flags"`
	CreatedAt int64        `cbor:"created_at"`
}

// InhibitionsResponse lists active inhibitions.
type InhibitionsResponse struct {
	Inhibitions []InhibitionInfo `cbor:"inhibitions"`
}
