package probe

import (
	"context"
	"fmt"
	"os"

	"schemeaccess/pkg/tts"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WritableDir checks that dir exists (creating it if needed) and accepts new files.
func WritableDir(name, dir string) Probe {
	return Probe{
		Name:     name,
		Critical: true,
		Check: func(ctx context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return err
			}
			path := f.Name()
			f.Close()
			return os.Remove(path)
		},
	}
}

// Database checks that the settings database answers.
func Database(db Pinger) Probe {
	return Probe{
		Name:     "Database",
		Critical: true,
		Check:    db.PingContext,
	}
}

// Voices checks that the speech engine can list voices. A failure only
// means speech output may not work, so it is not critical.
func Voices(engine string, p tts.Provider) Probe {
	return Probe{
		Name: "Voices (" + engine + ")",
		Check: func(ctx context.Context) error {
			voices, err := p.Voices(ctx)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				return fmt.Errorf("no voices installed")
			}
			return nil
		},
	}
}
