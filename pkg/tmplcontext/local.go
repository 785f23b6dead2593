package tmplcontext

import (
	"os"
	"runtime"
	"strings"

	"github.com/garden-io/garden-core/pkg/template"
)

// localRoot builds the "local" root available from every layer: the
// invoking machine's environment variables, platform and architecture.
// Action configs commonly gate behaviour on local.env.CI or
// local.platform rather than hard-coding it per environment.
func localRoot() template.Value {
	env := map[string]any{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return template.Map([]template.MapEntry{
		{Key: "env", Value: mapValue(env)},
		{Key: "platform", Value: template.String(runtime.GOOS)},
		{Key: "arch", Value: template.String(runtime.GOARCH)},
	})
}
