package core

import (
	"crypto/sha256"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

// CompileWAT turns a WebAssembly Text fixture into a byte blob via the
// external wat2wasm tool, returning the compiled bytes and their SHA-256
// digest. Ported from the teacher's CompileWASM deploy-pipeline helper;
// here it exists purely to turn the testdata/*.wat guest fixtures used by
// the sandbox tests into ExecutionScript bytes, since guest modules are
// out of scope to hand-encode as raw binaries.
func CompileWAT(srcPath, outDir string) ([]byte, [32]byte, error) {
	switch filepath.Ext(srcPath) {
	case ".wasm":
		b, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, [32]byte{}, errors.Wrap(err, "read wasm fixture")
		}
		return b, sha256.Sum256(b), nil
	case ".wat":
		out := filepath.Join(outDir, filepath.Base(srcPath)+".wasm")
		cmd := exec.Command("wat2wasm", "-o", out, srcPath)
		if err := cmd.Run(); err != nil {
			return nil, [32]byte{}, errors.Wrap(err, "run wat2wasm")
		}
		b, err := os.ReadFile(out)
		if err != nil {
			return nil, [32]byte{}, errors.Wrap(err, "read compiled wasm")
		}
		return b, sha256.Sum256(b), nil
	default:
		return nil, [32]byte{}, errors.New("unsupported fixture extension — must be .wat or .wasm")
	}
}
