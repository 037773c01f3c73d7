package avatar

import "encoding/json"

const (
	apiName    = "VTubeStudioPublicAPI"
	apiVersion = "1.0"
)

// Request/response message types of the public API that this plugin uses.
const (
	msgTokenRequest = "AuthenticationTokenRequest"
	msgAuthRequest  = "AuthenticationRequest"
	msgInject       = "InjectParameterDataRequest"
	msgAPIAvailable = "APIAvailableRequest"
	msgAPIError     = "APIError"
)

type requestEnvelope struct {
	APIName     string `json:"apiName"`
	APIVersion  string `json:"apiVersion"`
	RequestID   string `json:"requestID"`
	MessageType string `json:"messageType"`
	Data        any    `json:"data,omitempty"`
}

type responseEnvelope struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data"`
}

type tokenRequestData struct {
	PluginName      string `json:"pluginName"`
	PluginDeveloper string `json:"pluginDeveloper"`
}

type tokenResponseData struct {
	AuthenticationToken string `json:"authenticationToken"`
}

type authRequestData struct {
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
	AuthenticationToken string `json:"authenticationToken"`
}

type authResponseData struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason"`
}

type parameterValue struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

type injectRequestData struct {
	ParameterValues []parameterValue `json:"parameterValues"`
}

type apiErrorData struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}
