// Package comphttp declares the transport neutral HTTP API contracts. Concrete
// servers (http/chi) adapt these onto a router implementation.
package comphttp

// ResponseHandler renders one response onto the transport specific writer.
type ResponseHandler[T any] interface {
	Render(T) error
}

type HttpApi[REQ, RES any] interface {
	ParentUrl() string
	Url() string
	HttpMethod() []string
	Handle(r REQ) (ResponseHandler[RES], error)
}

type HttpApiSet[REQ, RES any] interface {
	AddHttpApi(a HttpApi[REQ, RES]) error

	DefaultErrorHandler(error) ResponseHandler[RES]
}
