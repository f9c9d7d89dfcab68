package ingestion

// Step paso del pipeline por mensaje.
type Step string

const (
	StepFetch    Step = "fetch"
	StepExtract  Step = "extract"
	StepDownload Step = "download"
	StepParse    Step = "parse"
	StepResolve  Step = "resolve"
	StepPersist  Step = "persist"
)

// Motivos de fallo expuestos en el resumen.
const (
	ReasonFetch    = "failed to fetch content"
	ReasonNoLink   = "no link found"
	ReasonDownload = "download failed"
	ReasonParse    = "parse failed"
	ReasonTenant   = "tenant not found"
	ReasonPersist  = "persist failed"
)

// MessageFailure fallo de un mensaje. El detalle completo queda en los logs.
type MessageFailure struct {
	MessageID string `json:"message_id"`
	Step      Step   `json:"step"`
	Reason    string `json:"reason"`
}

// Summary resultado agregado de una corrida.
// Attempted = Succeeded + Failed; Skipped son los mensajes no procesados por cancelación.
type Summary struct {
	Listed     int              `json:"listed"`
	Attempted  int              `json:"attempted"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	MarkedRead int              `json:"marked_read"`
	Failures   []MessageFailure `json:"failures"`
}

type status int

const (
	statusSkipped status = iota
	statusSucceeded
	statusFailed
)

// outcome resultado interno de un mensaje.
type outcome struct {
	status status
	step   Step
	reason string
	err    error
}

func succeeded() outcome { return outcome{status: statusSucceeded} }

func skipped(err error) outcome { return outcome{status: statusSkipped, err: err} }

func failed(step Step, reason string, err error) outcome {
	return outcome{status: statusFailed, step: step, reason: reason, err: err}
}
