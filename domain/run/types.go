package run

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strconv"
)

// RunFingerprint ensures deterministic replay: identical data, configuration
// and seed reproduce an identical chain
type RunFingerprint struct {
	DataHash    string `json:"data_hash"`
	ConfigHash  string `json:"config_hash"`
	Seed        uint64 `json:"seed"`
	CodeVersion string `json:"code_version"`
	Fingerprint string `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(dataHash, configHash string, seed uint64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		DataHash:    dataHash,
		ConfigHash:  configHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(dataHash, configHash, seed, codeVersion),
	}
}

func computeRunFingerprint(dataHash, configHash string, seed uint64, codeVersion string) string {
	data := fmt.Sprintf("data:%s|config:%s|seed:%d|code:%s", dataHash, configHash, seed, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// HashColumns hashes numeric columns by their exact bit patterns, so any change
// to an observation changes the hash
func HashColumns(cols ...[]float64) string {
	h := sha256.New()
	buf := make([]byte, 0, 24)
	for c, col := range cols {
		buf = strconv.AppendInt(buf[:0], int64(c), 10)
		buf = append(buf, ':')
		h.Write(buf)
		for _, v := range col {
			buf = strconv.AppendUint(buf[:0], math.Float64bits(v), 16)
			buf = append(buf, ',')
			h.Write(buf)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// HashStrings hashes a list of key=value style strings in order
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
