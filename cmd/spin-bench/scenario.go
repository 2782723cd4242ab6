package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-spin/v1/spin"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Hold a lock in one goroutine and probe it from another",
	RunE: func(cmd *cobra.Command, args []string) error {
		hold := v.GetDuration("hold")
		probe := v.GetDuration("probe")
		if err := fullScenario(hold, probe); err != nil {
			return err
		}
		slog.Info("scenario passed", "lock", "Mutex", "hold", hold, "probe", probe)
		if err := reducedScenario(hold, probe); err != nil {
			return err
		}
		slog.Info("scenario passed", "lock", "TryMutex", "hold", hold, "probe", probe)
		return nil
	},
}

func init() {
	f := scenarioCmd.Flags()
	f.Duration("hold", 500*time.Millisecond, "How long the first goroutine holds the lock")
	f.Duration("probe", 50*time.Millisecond, "When the second goroutine probes the held lock")
}

// fullScenario holds a Mutex via SpinLock for hold, probes it after probe,
// and probes again after release.
func fullScenario(hold, probe time.Duration) error {
	m := spin.New(0)
	return probeScenario(
		func() (func(), error) {
			g := m.SpinLock()
			return g.Unlock, nil
		},
		func() (int, bool) {
			g, ok := m.TryLock()
			if !ok {
				return 0, false
			}
			defer g.Unlock()
			return g.Get(), true
		},
		hold, probe,
	)
}

// reducedScenario is fullScenario on a TryMutex, probing on both sides.
func reducedScenario(hold, probe time.Duration) error {
	m := spin.NewTry(0)
	return probeScenario(
		func() (func(), error) {
			g, ok := m.TryLock()
			if !ok {
				return nil, fmt.Errorf("holder could not take a free TryMutex")
			}
			return g.Unlock, nil
		},
		func() (int, bool) {
			g, ok := m.TryLock()
			if !ok {
				return 0, false
			}
			defer g.Unlock()
			return g.Get(), true
		},
		hold, probe,
	)
}

func probeScenario(take func() (func(), error), try func() (int, bool), hold, probe time.Duration) error {
	release, err := take()
	if err != nil {
		return err
	}
	released := make(chan struct{})
	go func() {
		defer close(released)
		time.Sleep(hold)
		release()
	}()

	time.Sleep(probe)
	if _, ok := try(); ok {
		<-released
		return fmt.Errorf("probe succeeded while the lock was held")
	}
	<-released
	val, ok := try()
	if !ok {
		return fmt.Errorf("probe failed after release")
	}
	if val != 0 {
		return fmt.Errorf("expected value 0 after release, got %d", val)
	}
	return nil
}
