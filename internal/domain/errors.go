package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
)

// Errores del pipeline de ingesta FEL. Las capas de infraestructura los envuelven
// con fmt.Errorf("%w: ...") y el orquestador los clasifica con errors.Is.
var (
	// ErrAuth: no se pudo refrescar la credencial del buzón. Aborta la corrida completa.
	ErrAuth = errors.New("credencial del buzón inválida o no renovable")
	// ErrFetch: fallo al listar o leer un mensaje del buzón.
	ErrFetch = errors.New("no se pudo obtener el mensaje del buzón")
	// ErrLinkNotFound: el correo no contiene enlace de descarga XML.
	ErrLinkNotFound = errors.New("enlace de descarga XML no encontrado")
	// ErrDownload: se agotaron los reintentos de descarga del XML.
	ErrDownload = errors.New("descarga del XML fallida")
	// ErrParse: XML mal formado o sin los nodos obligatorios.
	ErrParse = errors.New("documento DTE inválido")
	// ErrResolution: ningún tenant coincide con el NIT del receptor.
	ErrResolution = errors.New("tenant no encontrado para el NIT del receptor")
	// ErrPersist: la transacción de guardado falló y se revirtió.
	ErrPersist = errors.New("no se pudo persistir la factura")
	// ErrRunInProgress: otra instancia tiene el candado de ejecución.
	ErrRunInProgress = errors.New("ya hay una ingesta en curso")
)
