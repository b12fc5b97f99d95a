package questdb

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// EndpointSet holds the primary and alternate (ILP, HTTP) port pairs for a
// QuestDB host. At most one pair is active; every write and query targets
// the active pair only.
type EndpointSet struct {
	Host        string
	ILPPort     int
	HTTPPort    int
	AltILPPort  int
	AltHTTPPort int

	ActiveILPPort  int
	ActiveHTTPPort int
}

// resolve probes the primary HTTP port first, then the alternate, and
// selects the first pair that answers. Returns false when neither does.
func (e *EndpointSet) resolve(timeout time.Duration) bool {
	if pingHTTP(e.Host, e.HTTPPort, timeout) {
		e.ActiveILPPort = e.ILPPort
		e.ActiveHTTPPort = e.HTTPPort
		return true
	}
	if pingHTTP(e.Host, e.AltHTTPPort, timeout) {
		e.ActiveILPPort = e.AltILPPort
		e.ActiveHTTPPort = e.AltHTTPPort
		return true
	}
	return false
}

func pingHTTP(host string, port int, timeout time.Duration) bool {
	client := http.Client{Timeout: timeout}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d", host, port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (e *EndpointSet) ilpAddr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.ActiveILPPort)
}

func (e *EndpointSet) execURL() string {
	return fmt.Sprintf("http://%s:%d/exec", e.Host, e.ActiveHTTPPort)
}
