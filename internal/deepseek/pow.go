package deepseek

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"ds2api/internal/config"
)

// PowSolver runs DeepSeek's DeepSeekHashV1 proof-of-work inside the official
// wasm module. Safe for concurrent use; solves are serialized because the
// wasm linear memory is shared.
type PowSolver struct {
	wasmPath string

	mu      sync.Mutex
	runtime wazero.Runtime
	module  api.Module
}

func NewPowSolver(wasmPath string) *PowSolver {
	return &PowSolver{wasmPath: wasmPath}
}

func (p *PowSolver) init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureLocked(ctx)
}

func (p *PowSolver) ensureLocked(ctx context.Context) error {
	if p.module != nil {
		return nil
	}
	b, err := os.ReadFile(p.wasmPath)
	if err != nil {
		return fmt.Errorf("read pow wasm: %w", err)
	}
	rt := wazero.NewRuntime(ctx)
	mod, err := rt.Instantiate(ctx, b)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("instantiate pow wasm: %w", err)
	}
	p.runtime = rt
	p.module = mod
	config.Logger.Info("[pow] wasm solver ready", "path", p.wasmPath)
	return nil
}

// Compute solves the challenge and returns the answer nonce.
func (p *PowSolver) Compute(ctx context.Context, challenge map[string]any) (int64, error) {
	algorithm, _ := challenge["algorithm"].(string)
	if algorithm != "" && algorithm != "DeepSeekHashV1" {
		return 0, fmt.Errorf("unsupported pow algorithm %q", algorithm)
	}
	challengeStr, _ := challenge["challenge"].(string)
	salt, _ := challenge["salt"].(string)
	if challengeStr == "" || salt == "" {
		return 0, errors.New("pow challenge missing fields")
	}
	difficulty := float64(intFrom(challenge["difficulty"]))
	if difficulty <= 0 {
		difficulty = 144000
	}
	expireAt := int64(intFrom(challenge["expire_at"]))
	prefix := fmt.Sprintf("%s_%d_", salt, expireAt)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureLocked(ctx); err != nil {
		return 0, err
	}
	return p.solveLocked(ctx, challengeStr, prefix, difficulty)
}

// solveLocked drives the wasm-bindgen calling convention: a 16-byte result
// frame on the shadow stack, two heap strings, and an (i32 status, f64 value)
// pair written back at retptr.
func (p *PowSolver) solveLocked(ctx context.Context, challenge, prefix string, difficulty float64) (int64, error) {
	mod := p.module
	stack := mod.ExportedFunction("__wbindgen_add_to_stack_pointer")
	alloc := mod.ExportedFunction("__wbindgen_export_0")
	solve := mod.ExportedFunction("wasm_solve")
	if stack == nil || alloc == nil || solve == nil {
		return 0, errors.New("pow wasm exports missing")
	}

	ret, err := stack.Call(ctx, uint64(api.EncodeI32(-16)))
	if err != nil {
		return 0, fmt.Errorf("pow stack alloc: %w", err)
	}
	retptr := uint32(ret[0])
	defer func() { _, _ = stack.Call(ctx, uint64(api.EncodeI32(16))) }()

	writeString := func(s string) (uint64, uint64, error) {
		out, err := alloc.Call(ctx, uint64(len(s)), 1)
		if err != nil {
			return 0, 0, err
		}
		ptr := out[0]
		if !mod.Memory().Write(uint32(ptr), []byte(s)) {
			return 0, 0, errors.New("pow wasm memory write failed")
		}
		return ptr, uint64(len(s)), nil
	}

	ptr0, len0, err := writeString(challenge)
	if err != nil {
		return 0, fmt.Errorf("pow write challenge: %w", err)
	}
	ptr1, len1, err := writeString(prefix)
	if err != nil {
		return 0, fmt.Errorf("pow write prefix: %w", err)
	}
	if _, err := solve.Call(ctx, uint64(retptr), ptr0, len0, ptr1, len1, api.EncodeF64(difficulty)); err != nil {
		return 0, fmt.Errorf("pow solve: %w", err)
	}

	statusRaw, ok := mod.Memory().Read(retptr, 4)
	if !ok {
		return 0, errors.New("pow result read failed")
	}
	if int32(binary.LittleEndian.Uint32(statusRaw)) == 0 {
		return 0, errors.New("pow solve returned no answer")
	}
	valueRaw, ok := mod.Memory().Read(retptr+8, 8)
	if !ok {
		return 0, errors.New("pow result read failed")
	}
	answer := math.Float64frombits(binary.LittleEndian.Uint64(valueRaw))
	return int64(answer), nil
}

// BuildPowHeader encodes the solved challenge as the x-ds-pow-response value.
func BuildPowHeader(challenge map[string]any, answer int64) (string, error) {
	payload := map[string]any{
		"algorithm":   challenge["algorithm"],
		"challenge":   challenge["challenge"],
		"salt":        challenge["salt"],
		"answer":      answer,
		"signature":   challenge["signature"],
		"target_path": challenge["target_path"],
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
