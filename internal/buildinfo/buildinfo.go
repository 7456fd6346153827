// Package buildinfo carries version details stamped at link time, e.g.
// -ldflags "-X vrpadapter/internal/buildinfo.Version=v1.2.0".
package buildinfo

import "runtime"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    return map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
        "go":      runtime.Version(),
    }
}
