// Package spawn implements the bridge to an external helper process
// for spawn-backed backends (spec §4.J/§6): it launches the helper
// with a sanitized environment, parses its tab-delimited stdout
// protocol into Job emitter calls, rate-limits stderr into the warning
// log, and runs a kill timer so an idle helper doesn't linger.
package spawn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/internal/pkglog"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
)

// DefaultKillTimeout is the idle-exit timer's default (spec §4.J:
// "configurable; default 5 s").
const DefaultKillTimeout = 5 * time.Second

// unsafeEnvChars is sanitized out of every environment key/value
// handed to the helper, unless debug KeepEnvironment is set (spec
// §4.J: "characters in \;{}[]()*?%\n\r\t become _").
var unsafeEnvChars = regexp.MustCompile(`[\\;{}\[\]()*?%\n\r\t]`)

func sanitizeEnv(s string) string {
	return unsafeEnvChars.ReplaceAllString(s, "_")
}

// Env is the environment the spec requires every spawned helper to
// receive (spec §4.J).
type Env struct {
	HTTPProxy      string
	HTTPSProxy     string
	FTPProxy       string
	SocksProxy     string
	NoProxy        string
	PAC            string
	Lang           string
	FrontendSocket string
	Network        string
	Background     bool
	Interactive    bool
	UID            uint32
	CacheAge       uint64
	AcceptedEulas  string
	// KeepEnvironment disables sanitization, matching the Daemon
	// config's debug-only KeepEnvironment key.
	KeepEnvironment bool
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// toEnviron renders e as "KEY=value" pairs, sanitized unless
// KeepEnvironment is set.
func (e Env) toEnviron() []string {
	pairs := map[string]string{
		"http_proxy":       e.HTTPProxy,
		"https_proxy":      e.HTTPSProxy,
		"ftp_proxy":        e.FTPProxy,
		"all_proxy":        e.SocksProxy,
		"no_proxy":         e.NoProxy,
		"pac":              e.PAC,
		"LANG":             e.Lang,
		"FRONTEND_SOCKET":  e.FrontendSocket,
		"NETWORK":          e.Network,
		"BACKGROUND":       boolString(e.Background),
		"INTERACTIVE":      boolString(e.Interactive),
		"UID":              strconv.FormatUint(uint64(e.UID), 10),
		"CACHE_AGE":        strconv.FormatUint(e.CacheAge, 10),
		"accepted_eulas":   e.AcceptedEulas,
	}
	out := make([]string, 0, len(pairs))
	for k, v := range pairs {
		if !e.KeepEnvironment {
			k = sanitizeEnv(k)
			v = sanitizeEnv(v)
		}
		out = append(out, k+"="+v)
	}
	return out
}

// Bridge supervises one helper process for the duration of a Job.
type Bridge struct {
	// Helper is the executable path, Args its fixed leading arguments
	// (the role name and parameters are appended per Run call).
	Helper string
	Args   []string

	KillTimeout time.Duration
	// StderrLimiter throttles how many stderr lines reach the warning
	// log per second; a nil limiter means unthrottled.
	StderrLimiter *rate.Limiter

	Log *pkglog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	killer  *time.Timer
	running bool
}

// IsRunning reports whether a helper process is currently active.
func (b *Bridge) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Run launches the helper for j with env and the given trailing
// arguments (the role-specific parameters), parses its stdout protocol
// into j's emitters, and blocks until the helper exits or ctx is
// cancelled.
func (b *Bridge) Run(ctx context.Context, j *job.Job, env Env, extraArgs ...string) error {
	b.stopKillTimer()

	args := append(append([]string{}, b.Args...), extraArgs...)
	cmd := exec.CommandContext(ctx, b.Helper, args...)
	cmd.Env = env.toEnviron()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.InternalError, err, "open helper stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.InternalError, err, "open helper stderr")
	}

	if err := cmd.Start(); err != nil {
		return pkgerrors.Wrap(pkgerrors.InternalError, err, "spawn helper")
	}
	b.mu.Lock()
	b.cmd = cmd
	b.running = true
	b.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.pumpStdout(j, stdout)
	}()
	go func() {
		defer wg.Done()
		b.pumpStderr(j, stderr)
	}()
	wg.Wait()

	waitErr := cmd.Wait()

	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	if !j.IsFinished() {
		// Helper exited without emitting "finished" (spec §4.J): the
		// bridge synthesizes the failure rather than leaving the Job
		// hanging, unless an error was already recorded.
		if !j.HasErrorSet() {
			msg := "helper exited without reporting completion"
			if waitErr != nil {
				msg = fmt.Sprintf("%s: %v", msg, waitErr)
			}
			j.ErrorCode(pkgerrors.InternalError, "%s", msg)
		}
		j.Finished(pkgenum.ExitFailed)
	}

	b.startKillTimer()
	return nil
}

func (b *Bridge) startKillTimer() {
	timeout := b.KillTimeout
	if timeout <= 0 {
		timeout = DefaultKillTimeout
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.killer != nil {
		b.killer.Stop()
	}
	b.killer = time.AfterFunc(timeout, func() {
		b.mu.Lock()
		cmd := b.cmd
		running := b.running
		b.mu.Unlock()
		if running && cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	})
}

func (b *Bridge) stopKillTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.killer != nil {
		b.killer.Stop()
		b.killer = nil
	}
}

func (b *Bridge) pumpStdout(j *job.Job, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if err := dispatchLine(j, line); err != nil {
			if b.Log != nil {
				b.Log.Warnf("spawn: malformed helper line %q: %v", line, err)
			}
		}
	}
}

func (b *Bridge) pumpStderr(j *job.Job, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if b.StderrLimiter != nil && !b.StderrLimiter.Allow() {
			continue
		}
		if b.Log != nil {
			b.Log.Warnf("helper stderr: %s", line)
		}
	}
}

// dispatchLine parses one tab-delimited record and invokes the
// matching Job emitter (spec §6's command table).
func dispatchLine(j *job.Job, line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) == 0 {
		return nil
	}
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "package":
		if len(rest) < 3 {
			return fmt.Errorf("package wants 3 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[1])
		if !ok {
			return fmt.Errorf("package: bad package id %q", rest[1])
		}
		j.EmitPackage(job.Package{Info: pkgenum.InfoFromText(rest[0]), ID: id, Summary: unescapeText(rest[2])})
	case "details":
		if len(rest) < 6 {
			return fmt.Errorf("details wants 6 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[0])
		if !ok {
			return fmt.Errorf("details: bad package id %q", rest[0])
		}
		size, _ := strconv.ParseUint(rest[5], 10, 64)
		j.EmitDetails(job.Details{
			ID:          id,
			License:     rest[1],
			Group:       pkgenum.GroupFromText(rest[2]),
			Description: unescapeText(rest[3]),
			URL:         rest[4],
			Size:        size,
		})
	case "finished":
		j.Finished(pkgenum.ExitSuccess)
	case "files":
		if len(rest) < 2 {
			return fmt.Errorf("files wants 2 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[0])
		if !ok {
			return fmt.Errorf("files: bad package id %q", rest[0])
		}
		j.EmitFiles(job.Files{ID: id, Files: splitList(rest[1])})
	case "repo-detail":
		if len(rest) < 3 {
			return fmt.Errorf("repo-detail wants 3 fields, got %d", len(rest))
		}
		j.EmitRepoDetail(job.RepoDetail{ID: rest[0], Description: rest[1], Enabled: rest[2] == "true"})
	case "updatedetail":
		if len(rest) < 11 {
			return fmt.Errorf("updatedetail wants 11 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[0])
		if !ok {
			return fmt.Errorf("updatedetail: bad package id %q", rest[0])
		}
		updates, _ := pkgid.FromText(unescapeText(rest[1]))
		obsoletes, _ := pkgid.FromText(unescapeText(rest[2]))
		j.EmitUpdateDetail(job.UpdateDetail{
			ID:           id,
			Updates:      updates,
			Obsoletes:    obsoletes,
			VendorURLs:   splitList(rest[3]),
			BugzillaURLs: splitList(rest[4]),
			CVEURLs:      splitList(rest[5]),
			Restart:      pkgenum.RestartFromText(rest[6]),
			Changelog:    unescapeText(rest[7]),
			State:        pkgenum.UpgradeKindFromText(rest[8]),
			Issued:       rest[9],
			Updated:      rest[10],
		})
	case "percentage":
		if len(rest) < 1 {
			return fmt.Errorf("percentage wants 1 field")
		}
		pct, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("percentage: %v", err)
		}
		if pct > 100 {
			return fmt.Errorf("percentage %d > 100 rejected", pct)
		}
		j.EmitPercentage(pct)
	case "item-progress":
		if len(rest) < 3 {
			return fmt.Errorf("item-progress wants 3 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[0])
		if !ok {
			return fmt.Errorf("item-progress: bad package id %q", rest[0])
		}
		pct, err := strconv.Atoi(rest[2])
		if err != nil {
			return fmt.Errorf("item-progress: %v", err)
		}
		return j.EmitItemProgress(job.ItemProgress{ID: id, Status: pkgenum.StatusFromText(rest[1]), Percent: pct})
	case "error":
		if len(rest) < 2 {
			return fmt.Errorf("error wants 2 fields, got %d", len(rest))
		}
		j.ErrorCode(pkgerrors.Code(rest[0]), "%s", unescapeErrorText(rest[1]))
	case "requirerestart":
		if len(rest) < 2 {
			return fmt.Errorf("requirerestart wants 2 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[1])
		if !ok {
			return fmt.Errorf("requirerestart: bad package id %q", rest[1])
		}
		j.EmitRequireRestart(job.RequireRestart{Restart: pkgenum.RestartFromText(rest[0]), ID: id})
	case "status":
		if len(rest) < 1 {
			return fmt.Errorf("status wants 1 field")
		}
		j.EmitStatus(pkgenum.StatusFromText(rest[0]))
	case "speed":
		if len(rest) < 1 {
			return fmt.Errorf("speed wants 1 field")
		}
		speed, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("speed: %v", err)
		}
		j.EmitSpeed(speed)
	case "download-size-remaining":
		if len(rest) < 1 {
			return fmt.Errorf("download-size-remaining wants 1 field")
		}
		remaining, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("download-size-remaining: %v", err)
		}
		j.EmitDownloadSizeRemaining(remaining)
	case "allow-cancel":
		if len(rest) < 1 {
			return fmt.Errorf("allow-cancel wants 1 field")
		}
		j.EmitAllowCancel(rest[0] == "true")
	case "no-percentage-updates":
		j.EmitPercentage(101)
	case "repo-signature-required":
		if len(rest) < 8 {
			return fmt.Errorf("repo-signature-required wants 8 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[0])
		if !ok {
			return fmt.Errorf("repo-signature-required: bad package id %q", rest[0])
		}
		j.EmitRepoSignatureRequired(job.RepoSignatureRequired{
			PackageID:   id,
			RepoID:      rest[1],
			URL:         rest[2],
			KeyName:     rest[3],
			KeyID:       rest[4],
			Fingerprint: rest[5],
			Created:     rest[6],
			SigType:     pkgenum.SigTypeFromText(rest[7]),
		})
	case "eula-required":
		if len(rest) < 4 {
			return fmt.Errorf("eula-required wants 4 fields, got %d", len(rest))
		}
		id, ok := pkgid.Split(rest[1])
		if !ok {
			return fmt.Errorf("eula-required: bad package id %q", rest[1])
		}
		j.EmitEulaRequired(job.EulaRequired{EulaID: rest[0], ID: id, Vendor: rest[2], Text: unescapeText(rest[3])})
	case "media-change-required":
		if len(rest) < 3 {
			return fmt.Errorf("media-change-required wants 3 fields, got %d", len(rest))
		}
		j.EmitMediaChangeRequired(job.MediaChangeRequired{Kind: rest[0], ID: rest[1], Text: unescapeText(rest[2])})
	case "distro-upgrade":
		if len(rest) < 3 {
			return fmt.Errorf("distro-upgrade wants 3 fields, got %d", len(rest))
		}
		j.EmitDistroUpgrade(job.DistroUpgrade{State: pkgenum.UpgradeKindFromText(rest[0]), Name: rest[1], Summary: unescapeText(rest[2])})
	case "category":
		if len(rest) < 5 {
			return fmt.Errorf("category wants 5 fields, got %d", len(rest))
		}
		icon := rest[4]
		if strings.HasPrefix(icon, "/") {
			return fmt.Errorf("category: icon must not be a path: %q", icon)
		}
		j.EmitCategory(job.Category{ParentID: rest[0], CatID: rest[1], Name: rest[2], Summary: unescapeText(rest[3]), Icon: icon})
	default:
		return fmt.Errorf("unrecognized command %q", cmd)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

// unescapeText turns the protocol's ";"-joined multi-line encoding
// back into real newlines (spec §6).
func unescapeText(s string) string {
	return strings.ReplaceAll(s, ";", "\n")
}

// unescapeErrorText reverses an error record's ";"→"\n", "%"→"$"
// substitution (spec §6).
func unescapeErrorText(s string) string {
	s = strings.ReplaceAll(s, ";", "\n")
	return strings.ReplaceAll(s, "$", "%")
}
