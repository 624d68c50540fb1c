package response

// 系统级错误码（基于 HTTP 语义）+ 布局生命周期错误码
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500

	// lifecycle-specific codes, stable for API clients
	CodeAlreadyComputed = 40901
	CodeNotComputed     = 40902
	CodeAlreadyRevealed = 40903
	CodeNotRevealed     = 40904
	CodeUnknownHandle   = 40001
	CodeInvalidProof    = 40301
)

// CodeMsgMap 集中管理 code - msg
var CodeMsgMap = map[int]string{
	CodeOK:           "OK",
	CodeBadRequest:   "Bad Request",
	CodeUnauthorized: "Unauthorized",
	CodeForbidden:    "Forbidden",
	CodeNotFound:     "Not Found",
	CodeConflict:     "Conflict",
	CodeServerError:  "Internal Server Error",

	CodeAlreadyComputed: "layout already computed",
	CodeNotComputed:     "layout not computed",
	CodeAlreadyRevealed: "layout already revealed",
	CodeNotRevealed:     "layout not revealed",
	CodeUnknownHandle:   "unknown decryption request",
	CodeInvalidProof:    "invalid decryption proof",
}
