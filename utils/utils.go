package utils

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// Ternary returns a when cond holds, else b
func Ternary(cond bool, a, b any) any {
	if cond {
		return a
	}

	return b
}

// ArrayContains returns the index of the first element matching match
func ArrayContains[T any](set []T, match func(elem T) bool) (int, bool) {
	for idx, elem := range set {
		if match(elem) {
			return idx, true
		}
	}

	return -1, false
}

func ULID() string {
	return ULIDAt(time.Now())
}

func ULIDAt(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Unmarshal serializes and deserializes any from into the object
// return error if occurred
func Unmarshal(from, object any) error {
	reformatted, err := json.Marshal(from)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(strings.NewReader(string(reformatted)))
	decoder.UseNumber()

	return decoder.Decode(object)
}

// UnmarshalFile reads a JSON or YAML file into dest; when decrypt is set and an
// encryption key is configured the file content is decrypted first
func UnmarshalFile(file string, dest any, decrypt ...bool) error {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("file not found: %s", err)
	}

	if len(decrypt) > 0 && decrypt[0] {
		decrypted, err := DecryptConfig(string(data))
		if err != nil {
			return fmt.Errorf("failed to decrypt config: %s", err)
		}
		data = []byte(decrypted)
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("failed to convert yaml file[%s]: %s", file, err)
		}
	}

	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("failed to unmarshal file[%s]: %s", file, err)
	}

	return nil
}

func IsValidSubcommand(available []*cobra.Command, cmd string) bool {
	_, found := ArrayContains(available, func(elem *cobra.Command) bool {
		return elem.Name() == cmd
	})

	return found
}

func TimestampedFileName(extension string) string {
	now := time.Now().UTC()
	ulid := ULIDAt(now)

	return fmt.Sprintf("%d-%d-%d_%d-%d-%d_%s.%s", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), ulid, extension)
}

// IsJSON reports whether str looks like a JSON object or array
func IsJSON(str string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(str), &js) == nil
}
