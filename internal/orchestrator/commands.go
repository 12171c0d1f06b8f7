package orchestrator

import (
	"fmt"
	"github.com/Borislavv/go-ash-bes/internal/registry"
	"strconv"
	"strings"
	"time"
)

const (
	containerName  = "c"
	definitionName = "d1"
)

// commands builds the transaction script: setup contexts first, the product or show command last.
func (o *Orchestrator) commands(target *registry.Target, op Operation, source string, params Params, deadline time.Duration) []string {
	cmds := []string{"set context errors to xml;"}

	if op.IsShow() {
		tpl := shows[op]
		if strings.Contains(tpl, "%s") {
			return append(cmds, fmt.Sprintf(tpl, quote(source)))
		}
		return append(cmds, tpl)
	}

	accept := params.XDAPAccept
	if accept == "" {
		accept = o.xdapAccept
	}
	cmds = append(cmds, setContext("xdap_accept", accept))
	if size := target.MaxResponseSize(); size > 0 {
		cmds = append(cmds, setContext("max_response_size", strconv.FormatInt(size, 10)))
	}
	if secs := int64(deadline / time.Second); secs > 0 {
		cmds = append(cmds, setContext("bes_timeout", strconv.FormatInt(secs, 10)))
	}
	if params.CFHistory != "" {
		cmds = append(cmds, setContext("cf_history_entry", params.CFHistory))
	}
	if params.StoreResult != "" {
		if params.XMLBase != "" {
			cmds = append(cmds, setContext("xml:base", params.XMLBase))
		}
		cmds = append(cmds, setContext("store_result", params.StoreResult))
	}
	if params.ExplicitContainers != nil {
		v := "no"
		if *params.ExplicitContainers {
			v = "yes"
		}
		cmds = append(cmds, setContext("dap_explicit_containers", v))
	}

	cmds = append(cmds, "set container in catalog values "+containerName+", "+source+";")
	define := "define " + definitionName + " as " + containerName
	if params.Constraint != "" {
		define += " with " + containerName + `.constraint="` + quote(params.Constraint) + `"`
	}
	cmds = append(cmds, define+";")

	get := "get " + string(op) + " for " + definitionName
	if params.ReturnAs != "" {
		get += " return as " + params.ReturnAs
	}
	return append(cmds, get+";")
}

func setContext(name, value string) string {
	return "set context " + name + " to " + value + ";"
}

func quote(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
