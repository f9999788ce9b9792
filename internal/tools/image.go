package tools

import (
	"context"
	"encoding/base64"
	"strings"
)

const noLocalImageModel = "Local Safetensors model is not loaded for image generation."

const placeholderSVG = `<svg width="64" height="64" viewBox="0 0 64 64" xmlns="http://www.w3.org/2000/svg">` +
	`<rect width="64" height="64" fill="#1e1e1e"/>` +
	`<path d="M32 0 A32 32 0 0 1 32 64" stroke="#4f46e5" stroke-width="4" fill="none"/>` +
	`<circle cx="32" cy="32" r="10" fill="#4f46e5"/></svg>`

// PlaceholderImage is returned when a local model is loaded but no
// generation script is configured.
var PlaceholderImage = "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(placeholderSVG))

// generateImage runs the configured generation script as
// `<python> <script> --model <path> --prompt <task>`. The script prints
// either a data URI or bare base64 PNG bytes.
func (r *LocalRunner) generateImage(ctx context.Context, req Request) (Response, error) {
	if req.Image == nil || strings.TrimSpace(req.Image.ModelPath) == "" {
		return failed(noLocalImageModel), nil
	}
	r.log.Info().Str("model", req.Image.ModelPath).Msg("local image generation")

	if req.Image.Script == "" {
		return Response{Stdout: str(PlaceholderImage)}, nil
	}

	resp := r.run(ctx, "", r.opts.Python, req.Image.Script, "--model", req.Image.ModelPath, "--prompt", req.Task)
	if resp.Stderr != nil && strings.TrimSpace(*resp.Stderr) != "" {
		return resp, nil
	}
	out := strings.TrimSpace(*resp.Stdout)
	if out == "" {
		return failed("image generation script produced no output"), nil
	}
	if !strings.HasPrefix(out, "data:image") {
		out = "data:image/png;base64," + out
	}
	return Response{Stdout: str(out)}, nil
}
