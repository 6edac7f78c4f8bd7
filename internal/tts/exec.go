package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

const maxExecLine = 16 << 20

type execProvider struct {
	cmd []string
}

type execRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
	Slow bool   `json:"slow"`
	Host string `json:"host,omitempty"`
}

type execResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Error       string `json:"error,omitempty"`
}

// NewExecProvider runs command once per request. The command receives a JSON
// request on stdin and answers with JSON lines carrying base64 audio.
func NewExecProvider(command string) (Provider, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("tts command empty")
	}
	return &execProvider{cmd: args}, nil
}

func (e *execProvider) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	data, err := json.Marshal(execRequest{Text: text, Lang: opts.Lang, Slow: opts.Slow, Host: opts.Host})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, &ProviderError{Provider: "exec", Message: "start command", Err: err}
	}

	var audio bytes.Buffer
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxExecLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			abort(cmd)
			return nil, &ProviderError{Provider: "exec", Message: "decode response", Err: err}
		}
		if resp.Error != "" {
			abort(cmd)
			return nil, &ProviderError{Provider: "exec", Message: resp.Error}
		}
		pcm, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
		if err != nil {
			abort(cmd)
			return nil, &ProviderError{Provider: "exec", Message: "decode audio", Err: err}
		}
		audio.Write(pcm)
	}
	scanErr := scanner.Err()
	if err := cmd.Wait(); err != nil {
		return nil, &ProviderError{Provider: "exec", Message: stderr.String(), Err: err}
	}
	if scanErr != nil {
		return nil, &ProviderError{Provider: "exec", Message: "read response", Err: scanErr}
	}
	if audio.Len() == 0 {
		return nil, &ProviderError{Provider: "exec", Message: "command produced no audio"}
	}
	return audio.Bytes(), nil
}

// abort stops a command whose output is no longer being read.
func abort(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}
