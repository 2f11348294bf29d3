package farmhttp

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/component/comphttp"
	"github.com/cachemesh/objprovider/farm/farmapi"
	chihttp "github.com/cachemesh/objprovider/http/chi"
)

const taskContentType = "application/cbor"

// FarmTaskApi receives tasks posted by peer nodes and applies them to the
// local sink. Bodies are cbor by default; json is accepted as well.
type FarmTaskApi struct {
	sink   component.FarmTaskSink
	secret []byte
	node   string
}

func NewFarmTaskApi(sink component.FarmTaskSink, secret []byte, nodeName string) *FarmTaskApi {
	return &FarmTaskApi{
		sink:   sink,
		secret: secret,
		node:   nodeName,
	}
}

func (f *FarmTaskApi) ParentUrl() string {
	return "/farm"
}

func (f *FarmTaskApi) Url() string {
	return "task"
}

func (f *FarmTaskApi) HttpMethod() []string {
	return []string{http.MethodPost}
}

func (f *FarmTaskApi) Handle(r *http.Request) (comphttp.ResponseHandler[http.ResponseWriter], error) {
	token, err := bearerToken(r)
	if err != nil {
		return chihttp.RenderStatus(http.StatusUnauthorized), nil
	}
	if _, err := VerifyFarmToken(f.secret, token); err != nil {
		return chihttp.RenderStatus(http.StatusUnauthorized), nil
	}

	task, err := f.decodeTask(r)
	if err != nil {
		return chihttp.RenderStatus(http.StatusBadRequest), nil
	}
	if err := farmapi.ValidateTask(task); err != nil {
		return chihttp.RenderStatus(http.StatusBadRequest), nil
	}
	if task.Node == f.node {
		// self delivery, nothing to apply
		return chihttp.RenderJson(http.StatusOK, taskAck{Applied: false}), nil
	}
	if err := f.sink.ApplyTask(task); err != nil {
		log.Println("[ERROR] apply farm task failure:", err)
		return chihttp.RenderError(err), nil
	}
	return chihttp.RenderJson(http.StatusOK, taskAck{Applied: true}), nil
}

type taskAck struct {
	Applied bool `json:"applied"`
}

func (f *FarmTaskApi) decodeTask(r *http.Request) (component.FarmTask, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), taskContentType) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return component.FarmTask{}, err
		}
		return farmapi.Unmarshal(data)
	}
	var task component.FarmTask
	if err := render.DecodeJSON(r.Body, &task); err != nil {
		return component.FarmTask{}, err
	}
	return task, nil
}

var _ comphttp.HttpApi[*http.Request, http.ResponseWriter] = new(FarmTaskApi)
