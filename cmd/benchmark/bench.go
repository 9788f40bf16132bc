package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nulzo/edge-gateway/internal/cli"
	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var (
	chatChunks = [][]byte{
		[]byte("data: {\"id\":\"bench-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Bench\"}}]}\n\n"),
		[]byte("data: {\"id\":\"bench-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"mark\"}}]}\n\n"),
		[]byte("data: {\"id\":\"bench-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n"),
	}
	responsesChunks = [][]byte{
		[]byte("event: response.created\ndata: {\"type\":\"response.created\",\"response\":{\"id\":\"resp_bench\",\"model\":\"gpt-4o-mini\"}}\n\n"),
		[]byte("event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":\"Bench\"}\n\n"),
		[]byte("event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":\"mark\"}\n\n"),
		[]byte("event: response.completed\ndata: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_bench\",\"status\":\"completed\"}}\n\n"),
	}
	streamDone    = []byte("data: [DONE]\n\n")
	chatResp      = []byte(`{"id":"bench-1","object":"chat.completion","created":1700000000,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	responsesResp = []byte(`{"id":"resp_bench","object":"response","model":"gpt-4o-mini","status":"completed","output":[{"type":"message","content":[{"type":"output_text","text":"Hello"}]}],"usage":{"input_tokens":3,"output_tokens":1,"total_tokens":4}}`)
)

// Report is printed at the end of a run.
type Report struct {
	Mode       string   `json:"mode"`
	Requests   uint64   `json:"requests"`
	Rate       float64  `json:"rate"`
	Throughput float64  `json:"throughput"`
	Success    float64  `json:"success_ratio"`
	P50        string   `json:"latency_p50"`
	P95        string   `json:"latency_p95"`
	P99        string   `json:"latency_p99"`
	Max        string   `json:"latency_max"`
	Statuses   []string `json:"status_codes"`
	Errors     []string `json:"errors,omitempty"`
}

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	mode := flag.String("mode", "chat", "Endpoint to exercise: chat or responses")
	stream := flag.Bool("stream", false, "Use streaming requests")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	path, body, err := requestFor(*mode, *stream)
	if err != nil {
		log.Fatal(err)
	}

	// start mock upstream
	go startMockServer()

	// build and start application
	fmt.Println(cli.Style("Building application...", cli.Cyan))
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	fmt.Println(cli.Style("Starting application...", cli.Cyan))
	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("SERVER_PORT=%d", appPort),
		fmt.Sprintf("OPENAI_BASE_URL=http://localhost:%d", mockPort),
		"OPENAI_API_KEY=bench-key",
		"LOG_LEVEL=error",
		"RATE_LIMIT_ENABLED=false",
	)

	logFile, err := os.Create("bench_server.log")
	if err != nil {
		log.Fatalf("Failed to create log file: %v", err)
	}
	defer func() {
		_ = logFile.Close()
	}()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	target := fmt.Sprintf("http://localhost:%d%s", appPort, path)
	done := make(chan struct{})
	if *chaos {
		fmt.Println(cli.Style("CHAOS MODE ENABLED: starting disrupters...", cli.Yellow))
		concurrency := *rate / 10
		if concurrency < 5 {
			concurrency = 5
		}
		if concurrency > 50 {
			concurrency = 50
		}
		go startChaosMonkey(target, body, concurrency, done)
	}

	label := *mode
	if *stream {
		label += "+stream"
	}
	fmt.Printf("%s Running %s benchmark: %s duration, %d req/s\n", cli.Arrow(), label, *duration, *rate)

	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodPost,
		URL:    target,
		Body:   []byte(body),
		Header: http.Header{"Content-Type": []string{"application/json"}},
	})

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "edge-gateway") {
		metrics.Add(res)
	}
	metrics.Close()
	close(done)

	fmt.Println(cli.PrettyFormat(buildReport(label, &metrics)))
}

// requestFor returns the gateway path and body for a benchmark mode.
func requestFor(mode string, stream bool) (string, string, error) {
	switch mode {
	case "chat":
		return "/v1/chat/completions",
			fmt.Sprintf(`{"model":"gpt-4o-mini","stream":%t,"messages":[{"role":"user","content":"Hello"}]}`, stream), nil
	case "responses":
		streamField := "false"
		if stream {
			streamField = `{"mode":"text"}`
		}
		return "/v1/responses",
			fmt.Sprintf(`{"model":"gpt-4o-mini","input":"Hello","stream":%s}`, streamField), nil
	}
	return "", "", errors.New("mode must be chat or responses")
}

func buildReport(mode string, m *vegeta.Metrics) Report {
	r := Report{
		Mode:       mode,
		Requests:   m.Requests,
		Rate:       m.Rate,
		Throughput: m.Throughput,
		Success:    m.Success,
		P50:        m.Latencies.P50.String(),
		P95:        m.Latencies.P95.String(),
		P99:        m.Latencies.P99.String(),
		Max:        m.Latencies.Max.String(),
	}
	for code, n := range m.StatusCodes {
		r.Statuses = append(r.Statuses, fmt.Sprintf("%s=%d", code, n))
	}

	seen := make(map[string]bool)
	for _, msg := range m.Errors {
		if !seen[msg] && len(r.Errors) < 5 {
			seen[msg] = true
			r.Errors = append(r.Errors, msg)
		}
	}
	return r
}

func startChaosMonkey(url, body string, concurrency int, done chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{}

			for {
				select {
				case <-done:
					return
				default:
					// disconnect somewhere between 1ms and 200ms in
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond

					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err == nil {
						_ = resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()
}

func startMockServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model","created":1721172741,"owned_by":"openai"}]}`))
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Stream {
			writeStream(w, append(chatChunks, streamDone))
			return
		}

		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatResp)
	})

	mux.HandleFunc("/v1/responses", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream json.RawMessage `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if s := string(req.Stream); s != "" && s != "false" && s != "null" {
			writeStream(w, responsesChunks)
			return
		}

		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(responsesResp)
	})

	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func writeStream(w http.ResponseWriter, chunks [][]byte) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)

	for _, chunk := range chunks {
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write(chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}
