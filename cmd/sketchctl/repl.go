package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"realtime-sketch/internal/engine"
	"realtime-sketch/internal/model"
)

// room REPL이 사용하는 세션 기능
type room interface {
	RoomID() string
	HostName() string
	SelfID() string
	Draw(attrs map[string]any) (string, error)
	Delete(id string) bool
	Erase(x, y float64) engine.EraseResult
	MoveCursor(x, y float64) bool
	Locate(participantID string) bool
	Undo() bool
	Redo() bool
	SetTool(t engine.Tool)
	Snapshot() ([]byte, error)
	Participants() []model.Participant
	Rename(name string) error
	SendChat(text string) error
}

const helpText = `Commands:
  /rect x y w h        draw a rectangle
  /circle x y r        draw a circle
  /line x1 y1 x2 y2    draw a line
  /text x y words...   place a text label
  /erase x y           erase once at a point
  /delete id           delete an object
  /undo, /redo         local history
  /tool name           select|pen|rect|circle|line|text|eraser
  /cursor x y          move your cursor
  /locate id           blink a marker at a participant's cursor
  /who                 list participants
  /name new-name       change display name
  /snapshot            print the scene as JSON
  /quit                leave the room
Anything else is sent as chat.`

// repl 입력이 끝나거나 /quit까지 명령 처리
func repl(r room, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		quit, err := runCommand(r, scanner.Text(), out)
		if err != nil {
			fmt.Fprintf(out, "⚠️ %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// runCommand 한 줄 처리
func runCommand(r room, line string, out io.Writer) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.SendChat(line)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(out, helpText)

	case "/rect":
		n, err := numbers(args, 4)
		if err != nil {
			return false, err
		}
		return false, draw(r, out, map[string]any{
			"type": "rect", "left": n[0], "top": n[1], "width": n[2], "height": n[3],
		})

	case "/circle":
		n, err := numbers(args, 3)
		if err != nil {
			return false, err
		}
		return false, draw(r, out, map[string]any{
			"type": "circle", "left": n[0] - n[2], "top": n[1] - n[2], "radius": n[2],
		})

	case "/line":
		n, err := numbers(args, 4)
		if err != nil {
			return false, err
		}
		return false, draw(r, out, map[string]any{
			"type": "line",
			"points": []any{
				map[string]any{"x": n[0], "y": n[1]},
				map[string]any{"x": n[2], "y": n[3]},
			},
		})

	case "/text":
		if len(args) < 3 {
			return false, fmt.Errorf("usage: /text x y words")
		}
		n, err := numbers(args[:2], 2)
		if err != nil {
			return false, err
		}
		return false, draw(r, out, map[string]any{
			"type": "text", "left": n[0], "top": n[1], "text": strings.Join(args[2:], " "),
		})

	case "/erase":
		n, err := numbers(args, 2)
		if err != nil {
			return false, err
		}
		res := r.Erase(n[0], n[1])
		fmt.Fprintf(out, "🧽 faded=%d deleted=%d\n", len(res.Faded), len(res.Deleted))

	case "/delete":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /delete id")
		}
		if !r.Delete(args[0]) {
			fmt.Fprintf(out, "no object %s\n", args[0])
		}

	case "/undo":
		if !r.Undo() {
			fmt.Fprintln(out, "nothing to undo")
		}

	case "/redo":
		if !r.Redo() {
			fmt.Fprintln(out, "nothing to redo")
		}

	case "/tool":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /tool name")
		}
		tool, err := parseTool(args[0])
		if err != nil {
			return false, err
		}
		r.SetTool(tool)

	case "/cursor":
		n, err := numbers(args, 2)
		if err != nil {
			return false, err
		}
		r.MoveCursor(n[0], n[1])

	case "/locate":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /locate id")
		}
		if !r.Locate(args[0]) {
			fmt.Fprintf(out, "no cursor for %s\n", args[0])
		}

	case "/who":
		fmt.Fprintf(out, "Room %s (host: %s, you: %s)\n", r.RoomID(), r.HostName(), r.SelfID())
		printParticipants(out, r.Participants())

	case "/name":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /name new-name")
		}
		return false, r.Rename(strings.Join(args, " "))

	case "/snapshot":
		data, err := r.Snapshot()
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, string(data))

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func draw(r room, out io.Writer, attrs map[string]any) error {
	id, err := r.Draw(attrs)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✏️ %s\n", id)
	return nil
}

func numbers(args []string, want int) ([]float64, error) {
	if len(args) != want {
		return nil, fmt.Errorf("expected %d numbers, got %d", want, len(args))
	}
	out := make([]float64, want)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func parseTool(name string) (engine.Tool, error) {
	switch t := engine.Tool(strings.ToLower(name)); t {
	case engine.ToolSelect, engine.ToolPen, engine.ToolRect, engine.ToolCircle,
		engine.ToolLine, engine.ToolText, engine.ToolEraser:
		return t, nil
	}
	return "", fmt.Errorf("unknown tool %q", name)
}

func printChat(out io.Writer, msg model.ChatMessage) {
	if msg.Type == model.ChatTypeSystem {
		fmt.Fprintf(out, "[%s] * %s %s\n", msg.Timestamp, msg.Username, msg.Message)
		return
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp, msg.Username, msg.Message)
}

func printParticipants(out io.Writer, list []model.Participant) {
	if len(list) == 0 {
		fmt.Fprintln(out, "👥 (nobody visible)")
		return
	}
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.ID))
	}
	fmt.Fprintf(out, "👥 %s\n", strings.Join(names, ", "))
}
