package chi

import (
	"encoding/json"
	"net/http"

	"github.com/cachemesh/objprovider/component/comphttp"
)

type chiRenderStatus struct {
	status int
}

func (c chiRenderStatus) Render(w http.ResponseWriter) error {
	w.WriteHeader(c.status)
	return nil
}

func RenderStatus(status int) comphttp.ResponseHandler[http.ResponseWriter] {
	return chiRenderStatus{status: status}
}

type chiRenderError struct {
	err error
}

func (c *chiRenderError) Render(w http.ResponseWriter) error {
	w.WriteHeader(http.StatusInternalServerError)
	w.Header().Add("Content-Type", "text/plain")
	_, err := w.Write([]byte(c.err.Error()))
	return err
}

func RenderError(err error) comphttp.ResponseHandler[http.ResponseWriter] {
	return &chiRenderError{err: err}
}

type chiRenderJson struct {
	status int
	obj    interface{}
}

func (c *chiRenderJson) Render(w http.ResponseWriter) error {
	data, err := json.Marshal(c.obj)
	if err != nil {
		return err
	}
	w.WriteHeader(c.status)
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	_, err = w.Write(data)
	return err
}

func RenderJson(status int, obj interface{}) comphttp.ResponseHandler[http.ResponseWriter] {
	return &chiRenderJson{obj: obj, status: status}
}
