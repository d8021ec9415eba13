package cv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// FilePlaceholder in CommandCapturer.Args is replaced by the output path.
const FilePlaceholder = "{file}"

const defaultCommandTimeout = 10 * time.Second

// CommandCapturer runs an external screenshot tool. The tool either writes
// to a path passed through FilePlaceholder, or (PathFromStdout) chooses the
// path itself and prints it.
type CommandCapturer struct {
	Name           string
	Args           []string
	PathFromStdout bool
	Timeout        time.Duration
	TempDir        string
}

// ScrotCapturer captures with scrot on X11.
func ScrotCapturer() *CommandCapturer {
	return &CommandCapturer{Name: "scrot", Args: []string{"-o", FilePlaceholder}}
}

// GnomeScreenshotCapturer captures with gnome-screenshot.
func GnomeScreenshotCapturer() *CommandCapturer {
	return &CommandCapturer{Name: "gnome-screenshot", Args: []string{"-f", FilePlaceholder}}
}

// KWinCapturer asks KWin over D-Bus for a full screenshot; KWin replies
// with the file it wrote.
func KWinCapturer() *CommandCapturer {
	return &CommandCapturer{
		Name:           "qdbus",
		Args:           []string{"org.kde.KWin", "/Screenshot", "screenshotFullscreen"},
		PathFromStdout: true,
	}
}

// CaptureFrame runs the tool, decodes its output and crops to region.
func (c *CommandCapturer) CaptureFrame(ctx context.Context, region *Region) (*Image, error) {
	if _, err := exec.LookPath(c.Name); err != nil {
		return nil, c.fail(err)
	}

	tempDir := c.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	outFile := filepath.Join(tempDir, fmt.Sprintf("imagecenter-%d.png", time.Now().UnixNano()))

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strings.ReplaceAll(a, FilePlaceholder, outFile)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, c.fail(fmt.Errorf("timed out after %v", timeout))
		}
		return nil, c.fail(fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(stderr.String())))
	}

	path := outFile
	if c.PathFromStdout {
		path = strings.TrimSpace(stdout.String())
		if path == "" {
			return nil, c.fail(fmt.Errorf("no output path printed"))
		}
	}
	defer os.Remove(path)

	img, err := Load(path)
	if err != nil {
		return nil, c.fail(err)
	}
	if region == nil {
		return img, nil
	}
	cropped, err := img.Crop(*region)
	if err != nil {
		return nil, c.fail(err)
	}
	return cropped, nil
}

func (c *CommandCapturer) fail(err error) error {
	return &CaptureError{Backend: c.Name, Err: err}
}
