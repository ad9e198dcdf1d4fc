// A scripted driver for smoke-testing an engine. It plays the chosen
// benchmark with a trivial fixed strategy and prints the final result.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gorilla/websocket"

	"econbench.ai/internal/protocol"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		benchmark = flag.String("benchmark", "vending", "vending or rideshare")
		seed      = flag.Int64("seed", 1337, "run seed")
		periods   = flag.Int("periods", 30, "periods to play before hanging up")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Benchmark:       *benchmark,
		Model:           "scripted-bot",
		Seed:            *seed,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil {
		logger.Fatalf("decode WELCOME: %v", err)
	}
	logger.Printf("WELCOME run=%s benchmark=%s tools=%d", welcome.RunID, welcome.Benchmark, len(welcome.Tools))

	b := &bot{conn: conn, log: logger}
	for period := 0; period < *periods; period++ {
		if !b.playPeriod(*benchmark) {
			return
		}
	}
	logger.Printf("period budget spent; hanging up")
}

type bot struct {
	conn  *websocket.Conn
	log   *log.Logger
	calls int
}

// call runs one CALL/RESULT exchange. The false return means the run
// ended: the RUN_END result has been printed.
func (b *bot) call(tool string, input map[string]any) (protocol.ResultMsg, bool) {
	b.calls++
	req := protocol.CallMsg{
		Type:            protocol.TypeCall,
		ProtocolVersion: protocol.Version,
		ID:              fmt.Sprintf("c%d", b.calls),
		Tool:            tool,
		Input:           input,
	}
	if err := b.conn.WriteJSON(req); err != nil {
		b.log.Fatalf("send CALL: %v", err)
	}
	for {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			b.log.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			if !res.OK {
				b.log.Printf("%s -> %s: %s", tool, res.Code, res.Message)
			}
			return res, true
		case protocol.TypeRunEnd:
			var end protocol.RunEndMsg
			if err := json.Unmarshal(msg, &end); err != nil {
				continue
			}
			r := end.Result
			b.log.Printf("RUN_END score=%.2f steps=%d reason=%s interrupted=%v",
				r.Score, r.FinalStep, r.TerminationReason, r.Interrupted)
			return protocol.ResultMsg{}, false
		}
	}
}

// playPeriod issues one period's worth of calls and then waits the
// clock forward.
func (b *bot) playPeriod(benchmark string) bool {
	switch benchmark {
	case "vending":
		if _, ok := b.call("check_machine", nil); !ok {
			return false
		}
		if _, ok := b.call("collect_cash", nil); !ok {
			return false
		}
		if _, ok := b.call("wait_for_next_day", nil); !ok {
			return false
		}
	case "rideshare":
		res, ok := b.call("check_status", nil)
		if !ok {
			return false
		}
		if status, _ := res.Data["status"].(string); status == "offline" {
			if _, ok := b.call("go_online", nil); !ok {
				return false
			}
		}
		if res, ok = b.call("view_requests", nil); ok {
			if reqs, _ := res.Data["requests"].([]any); len(reqs) > 0 {
				if first, _ := reqs[0].(map[string]any); first != nil {
					if id, _ := first["id"].(string); id != "" {
						if _, ok := b.call("accept_request", map[string]any{"request_id": id}); !ok {
							return false
						}
					}
				}
			}
		} else {
			return false
		}
		if _, ok := b.call("wait_for_next_hour", nil); !ok {
			return false
		}
	default:
		b.log.Fatalf("unknown benchmark %q", benchmark)
	}
	return true
}
