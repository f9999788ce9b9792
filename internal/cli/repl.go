package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentric/internal/display"
	"agentric/internal/gate"
	"agentric/internal/gateway"
	"agentric/internal/listener"
	"agentric/internal/logger"
	"agentric/internal/mission"
	"agentric/internal/provider"
)

const (
	authorizePrompt = "authorize [y/n]> "

	replHelp = `Type an objective to start a mission, or one of:
  /roster                         list agents (* marks the team)
  /toggle <agent-id>              add or remove an agent
  /all                            select every available agent (again to clear)
  /team                           show the team and the last mission log
  /attach <image-path>            attach an image to the next objective
  /text remote [model]            use the Gemini API for text
  /text local <endpoint> <model>  use a local Ollama server for text
  /image remote [model]           use the Gemini API for images
  /image local <model> [script]   use a local image model
  /image off                      disable image generation
  /counts                         show audit log sizes
  /clear                          clear all audit logs
  exit                            quit`
)

type printer interface {
	Println(s string)
}

type repl struct {
	orch       *mission.Orchestrator
	out        printer
	setPrompt  func(string)
	attachment *gateway.Attachment
}

func newREPL(orch *mission.Orchestrator, out printer, setPrompt func(string)) *repl {
	if setPrompt == nil {
		setPrompt = func(string) {}
	}
	r := &repl{orch: orch, out: out, setPrompt: setPrompt}
	orch.Subscribe(func(m mission.Message) {
		out.Println(display.FormatMessage(m))
	})
	orch.Gate().OnRequest(func(req gate.Request) {
		out.Println(display.FormatAuthorization(req))
		setPrompt(authorizePrompt)
	})
	return r
}

// printResults reports every settled mission until the channel closes or
// ctx ends.
func (r *repl) printResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-r.orch.Results():
			if !ok {
				return
			}
			r.out.Println(fmt.Sprintf("[Mission %s %s]", res.MissionID, strings.ToUpper(string(res.State))))
			if res.Metrics != nil {
				logger.Log.Info().Str("mission", res.MissionID).Msg(display.FormatMissionMetrics(res.Metrics))
			}
		}
	}
}

// handle processes one input line. It reports whether the REPL should exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)

	if _, pending := r.orch.Gate().Pending(); pending {
		r.answer(line)
		return false
	}

	switch strings.ToLower(line) {
	case "":
		return false
	case "exit", "quit":
		return true
	}

	if strings.HasPrefix(line, "/") {
		r.command(ctx, strings.Fields(line))
		return false
	}

	att := r.attachment
	r.attachment = nil
	if _, err := r.orch.Send(ctx, line, att); err != nil && !errors.Is(err, mission.ErrEmptyTeam) {
		r.out.Println("[Rejected] " + err.Error())
	}
	return false
}

func (r *repl) answer(line string) {
	yes, ok := listener.YesNo(line)
	if !ok {
		r.out.Println("Please answer y/n.")
		return
	}
	g := r.orch.Gate()
	var err error
	if yes {
		err = g.Allow()
	} else {
		err = g.Deny()
	}
	if err != nil {
		r.out.Println("[Authorization] " + err.Error())
	}
	r.setPrompt("")
}

func (r *repl) command(ctx context.Context, args []string) {
	switch args[0] {
	case "/help":
		r.out.Println(replHelp)
	case "/roster":
		cfg := r.orch.Providers().Snapshot()
		r.out.Println(display.FormatRoster(r.orch.Agents(), r.orch.Team(), cfg.Selectable))
	case "/team":
		team := r.orch.Team()
		r.out.Println(fmt.Sprintf("Team (%d): state=%s", len(team), r.orch.State()))
		r.out.Println(display.FormatMissionLog(r.orch.MissionLog(), team))
	case "/toggle":
		if len(args) < 2 {
			r.out.Println("usage: /toggle <agent-id>")
			return
		}
		r.toggle(args[1])
	case "/all":
		team := r.orch.SelectAll()
		r.out.Println(fmt.Sprintf("%d agents on the team.", len(team)))
	case "/attach":
		if len(args) < 2 {
			r.out.Println("usage: /attach <image-path>")
			return
		}
		att, err := gateway.LoadAttachment(args[1])
		if err != nil {
			r.out.Println("[Attach] " + err.Error())
			return
		}
		r.attachment = att
		r.out.Println(fmt.Sprintf("Attached %s (%s). It goes with the next objective.", att.Name, att.MIMEType))
	case "/text":
		r.setText(args[1:])
	case "/image":
		r.setImage(args[1:])
	case "/counts":
		counts, err := r.orch.Counts(ctx)
		if err != nil {
			r.out.Println("[Audit] " + err.Error())
			return
		}
		r.out.Println(display.FormatCounts(counts))
	case "/clear":
		_ = r.orch.ClearMemory(ctx)
	default:
		r.out.Println(fmt.Sprintf("Unknown command %q. Type /help.", args[0]))
	}
}

func (r *repl) toggle(id string) {
	on, err := r.orch.ToggleTeam(id)
	if err != nil {
		r.out.Println("[Team] " + err.Error())
		return
	}
	name := id
	for _, a := range r.orch.Agents() {
		if a.ID == id {
			name = a.Name
		}
	}
	if on {
		r.out.Println(name + " joined the team.")
	} else {
		r.out.Println(name + " left the team.")
	}
}

func (r *repl) setText(args []string) {
	var t provider.Text
	switch {
	case len(args) >= 1 && args[0] == "remote":
		model := ""
		if len(args) > 1 {
			model = args[1]
		}
		t = provider.RemoteText(model)
	case len(args) >= 3 && args[0] == "local":
		t = provider.LocalText(args[1], args[2])
	default:
		r.out.Println("usage: /text remote [model] | /text local <endpoint> <model>")
		return
	}
	// Failures are narrated by the orchestrator.
	_ = r.orch.SetTextProvider(t)
}

func (r *repl) setImage(args []string) {
	var i provider.Image
	switch {
	case len(args) >= 1 && args[0] == "off":
		i = provider.Image{}
	case len(args) >= 1 && args[0] == "remote":
		model := ""
		if len(args) > 1 {
			model = args[1]
		}
		i = provider.RemoteImage(model)
	case len(args) >= 2 && args[0] == "local":
		script := ""
		if len(args) > 2 {
			script = args[2]
		}
		i = provider.LocalImage(args[1], script)
	default:
		r.out.Println("usage: /image remote [model] | /image local <model> [script] | /image off")
		return
	}
	_ = r.orch.SetImageProvider(i)
}
