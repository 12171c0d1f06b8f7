package admin

import (
	"encoding/xml"
	"strconv"
)

const Namespace = "http://xml.opendap.org/ns/bes/admin/1.0#"

type command struct {
	XMLName xml.Name `xml:"http://xml.opendap.org/ns/bes/admin/1.0# BesAdminCmd"`
	Op      op
}

type op struct {
	XMLName xml.Name
	Module  string `xml:"module,attr,omitempty"`
	Lines   string `xml:"lines,attr,omitempty"`
	Name    string `xml:"name,attr,omitempty"`
	State   string `xml:"state,attr,omitempty"`
	Body    string `xml:",chardata"`
}

func newOp(name string) op { return op{XMLName: xml.Name{Local: name}} }

func encode(o op) ([]byte, error) {
	body, err := xml.MarshalIndent(command{Op: o}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func startCmd() op   { return newOp("Start") }
func stopNowCmd() op { return newOp("StopNow") }

func getConfigCmd(module string) op {
	o := newOp("GetConfig")
	o.Module = module
	return o
}

func setConfigCmd(module, config string) op {
	o := newOp("SetConfig")
	o.Module, o.Body = module, config
	return o
}

func tailLogCmd(lines int) op {
	o := newOp("TailLog")
	if lines > 0 {
		o.Lines = strconv.Itoa(lines)
	}
	return o
}

func getLogContextsCmd() op { return newOp("GetLogContexts") }

func setLogContextCmd(name string, on bool) op {
	o := newOp("SetLogContext")
	o.Name, o.State = name, state(on)
	return o
}

func state(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// LogContext is a named backend debug log switch.
type LogContext struct {
	Name  string `xml:"name,attr"`
	State string `xml:"state,attr"`
}

func (c LogContext) On() bool { return c.State == "on" }

type logContexts struct {
	Contexts []LogContext `xml:"LogContext"`
}
