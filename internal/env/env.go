package env

import (
	"os"

	"github.com/joho/godotenv"
)

// Load reads the given dotenv files in order. Variables already present in the
// process environment, or set by an earlier file, are left untouched.
func Load(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}
