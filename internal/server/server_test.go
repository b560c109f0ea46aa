package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devwelkin/hermes-static/internal/reqlog"
	"github.com/devwelkin/hermes-static/internal/request"
	"github.com/devwelkin/hermes-static/internal/resolve"
	"github.com/devwelkin/hermes-static/internal/response"
	"github.com/devwelkin/hermes-static/internal/site"
)

// syncBuffer lets the test read the request log while handlers append to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupTestServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	views := filepath.Join(dir, "views")
	public := filepath.Join(dir, "public")
	files := map[string]string{
		filepath.Join(views, "index.html"):     "<h1>home</h1>",
		filepath.Join(views, "not-found.html"): "<h1>missing</h1>",
		filepath.Join(public, "big.bin"):       strings.Repeat("b", 3*response.ChunkSize+17),
		filepath.Join(public, "notes.txt"):     "hello",
	}
	for p, content := range files {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	resolver, err := resolve.New(views, public)
	if err != nil {
		t.Fatalf("resolve.New: %v", err)
	}

	cfg.Addr = "127.0.0.1:0"
	s, err := Serve(cfg, site.New(resolver).Respond)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, s.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	t.Cleanup(func() { conn.Close() })
	return conn
}

// roundTrip sends raw and reads until the server closes the connection.
func roundTrip(t *testing.T, addr, raw string) string {
	t.Helper()
	conn := dial(t, addr)
	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(resp)
}

func splitResponse(t *testing.T, resp string) (statusLine string, headers []string, body string) {
	t.Helper()
	head, body, ok := strings.Cut(resp, "\r\n\r\n")
	if !ok {
		t.Fatalf("response has no header terminator: %q", resp)
	}
	lines := strings.Split(head, "\r\n")
	return lines[0], lines[1:], body
}

func hasHeader(headers []string, want string) bool {
	for _, h := range headers {
		if h == want {
			return true
		}
	}
	return false
}

func TestServeRootDocument(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	status, headers, body := splitResponse(t, roundTrip(t, addr, "GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	if status != "HTTP/1.1 200 OK" {
		t.Errorf("status = %q", status)
	}
	if !hasHeader(headers, "Content-Type: text/html") || !hasHeader(headers, "Connection: close") {
		t.Errorf("headers = %q", headers)
	}
	if body != "<h1>home</h1>" {
		t.Errorf("body = %q", body)
	}
}

func TestServeNotFound(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	status, headers, body := splitResponse(t, roundTrip(t, addr, "GET /does-not-exist.xyz HTTP/1.1\r\n\r\n"))
	if status != "HTTP/1.1 404 Not Found" {
		t.Errorf("status = %q", status)
	}
	if !hasHeader(headers, "Content-Type: text/html") {
		t.Errorf("headers = %q", headers)
	}
	if body != "<h1>missing</h1>" {
		t.Errorf("body = %q", body)
	}
}

func TestServeStreamsLargeFile(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	status, headers, body := splitResponse(t, roundTrip(t, addr, "GET /big.bin HTTP/1.1\r\n\r\n"))
	if status != "HTTP/1.1 200 OK" {
		t.Errorf("status = %q", status)
	}
	if !hasHeader(headers, "Content-Type: application/octet-stream") {
		t.Errorf("headers = %q", headers)
	}
	if body != strings.Repeat("b", 3*response.ChunkSize+17) {
		t.Errorf("body has %d bytes", len(body))
	}
}

func TestServeHead(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	status, _, body := splitResponse(t, roundTrip(t, addr, "HEAD /notes.txt HTTP/1.1\r\n\r\n"))
	if status != "HTTP/1.1 200 OK" || body != "" {
		t.Errorf("HEAD = %q, body %q", status, body)
	}
}

func TestServeJSONListing(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	for _, raw := range []string{
		"GET /files HTTP/1.1\r\nAccept: application/json\r\n\r\n",
		"GET /api/files HTTP/1.1\r\n\r\n",
	} {
		status, headers, body := splitResponse(t, roundTrip(t, addr, raw))
		if status != "HTTP/1.1 200 OK" {
			t.Errorf("status = %q", status)
		}
		if !hasHeader(headers, "Content-Type: application/json") || !hasHeader(headers, "Connection: close") {
			t.Errorf("headers = %q", headers)
		}

		var entries []resolve.Entry
		if err := json.Unmarshal([]byte(body), &entries); err != nil {
			t.Fatalf("listing is not JSON: %v: %q", err, body)
		}
		if len(entries) != 2 || entries[0].Name != "big.bin" || entries[1].Name != "notes.txt" {
			t.Errorf("entries = %+v", entries)
		}
		if entries[0].Size != "12.0 KB" || entries[1].Size != "5.0 B" {
			t.Errorf("sizes = %q, %q", entries[0].Size, entries[1].Size)
		}
	}
}

func TestServeMalformedRequestLine(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	status, _, _ := splitResponse(t, roundTrip(t, addr, "GET /\r\n\r\n"))
	if status != "HTTP/1.1 400 Bad Request" {
		t.Errorf("status = %q", status)
	}
}

func TestServeIncompleteBodySendsNothing(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	conn := dial(t, addr)
	io.WriteString(conn, "POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\nshort")
	conn.(*net.TCPConn).CloseWrite()

	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected no response, got %q", resp)
	}
}

func TestServeHandlerErrorBeforeWrite(t *testing.T) {
	s, err := Serve(Config{Addr: "127.0.0.1:0"}, func(w *response.Writer, req *request.Request) error {
		if req.Path == "/teapot" {
			return &HandlerError{StatusCode: response.StatusBadRequest, Message: "no\n"}
		}
		return errors.New("disk on fire")
	})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer s.Close()

	status, _, body := splitResponse(t, roundTrip(t, s.Addr().String(), "GET /teapot HTTP/1.1\r\n\r\n"))
	if status != "HTTP/1.1 400 Bad Request" || body != "no\n" {
		t.Errorf("got %q %q", status, body)
	}
	status, _, _ = splitResponse(t, roundTrip(t, s.Addr().String(), "GET /x HTTP/1.1\r\n\r\n"))
	if status != "HTTP/1.1 500 Internal Server Error" {
		t.Errorf("status = %q", status)
	}
}

func TestServeRequestLog(t *testing.T) {
	var buf syncBuffer
	_, addr := setupTestServer(t, Config{RequestLog: reqlog.New(&buf)})

	roundTrip(t, addr, "POST /notes.txt HTTP/1.1\r\nContent-Type: application/json\r\nContent-Length: 7\r\n\r\n{\"x\":1}")
	roundTrip(t, addr, "PUT /notes.txt HTTP/1.1\r\nContent-Type: text/plain\r\nContent-Length: 6\r\n\r\nsecret")

	got := buf.String()
	for _, want := range []string{"IP: 127.0.0.1\n", "Method: POST\n", "URL: /notes.txt\n", "Body: {\"x\":1}\n", "Method: PUT\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("request log missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "secret") {
		t.Errorf("text/plain body must not be logged:\n%s", got)
	}
}

func TestServeSlowAndFastClients(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	raw := "GET /notes.txt HTTP/1.1\r\nHost: x\r\nUser-Agent: test\r\n\r\n"
	results := make(chan string, 2)

	go func() {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			results <- "dial: " + err.Error()
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(10 * time.Second))
		for i := 0; i < len(raw); i++ {
			if _, err := conn.Write([]byte{raw[i]}); err != nil {
				results <- "write: " + err.Error()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		resp, _ := io.ReadAll(conn)
		results <- "slow " + string(resp)
	}()

	go func() {
		// let the slow client get going first
		time.Sleep(50 * time.Millisecond)
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			results <- "dial: " + err.Error()
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(10 * time.Second))
		conn.Write([]byte(raw))
		resp, _ := io.ReadAll(conn)
		results <- "fast " + string(resp)
	}()

	first, second := <-results, <-results
	if !strings.HasPrefix(first, "fast ") {
		t.Errorf("fast client should finish first, got %.40q", first)
	}
	for _, r := range []string{first, second} {
		_, resp, _ := strings.Cut(r, " ")
		if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") || !strings.HasSuffix(resp, "\r\n\r\nhello") {
			t.Errorf("unexpected response %q", r)
		}
	}
}

func TestServeStalledClientDoesNotBlockOthers(t *testing.T) {
	_, addr := setupTestServer(t, Config{})

	stalled := dial(t, addr)
	if _, err := io.WriteString(stalled, "GET / HTTP/1.1\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	status, _, body := splitResponse(t, roundTrip(t, addr, "GET /notes.txt HTTP/1.1\r\n\r\n"))
	if status != "HTTP/1.1 200 OK" || body != "hello" {
		t.Errorf("second connection got %q %q", status, body)
	}

	// the stalled connection is still open and unanswered
	stalled.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	n, err := stalled.Read(make([]byte, 1))
	var ne net.Error
	if n != 0 || !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("stalled connection read = %d, %v; want timeout", n, err)
	}
}

func TestServeReadTimeout(t *testing.T) {
	_, addr := setupTestServer(t, Config{ReadTimeout: 100 * time.Millisecond})

	conn := dial(t, addr)
	io.WriteString(conn, "GET / HTTP/1.1\r\n")

	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("server should close the idle connection, read err = %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected no response, got %q", resp)
	}
}

func TestCloseStopsAccepting(t *testing.T) {
	s, addr := setupTestServer(t, Config{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Error("dial after Close should fail")
	}
}

func TestConnStateString(t *testing.T) {
	if stateReadingBody.String() != "reading body" {
		t.Errorf("String() = %q", stateReadingBody.String())
	}
	if connState(200).String() != "unknown" {
		t.Errorf("String() = %q", connState(200).String())
	}
}
