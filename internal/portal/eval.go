package portal

import (
	"encoding/json"
	"fmt"
)

// evalEnvelope is the JSON shape every in-page script returns.
type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// jsFrameSelect locates the vehicle dropdown inside the history frame. The
// frame is same-origin, so its document is reachable from the top page.
const jsFrameSelect = `
var frame = document.querySelector(%s);
if (!frame) return JSON.stringify({ok:false,error_code:"` + CodeElementNotFound + `",error_message:"history frame not found"});
var doc = frame.contentDocument || (frame.contentWindow && frame.contentWindow.document);
if (!doc) return JSON.stringify({ok:false,error_code:"` + CodeElementNotFound + `",error_message:"history frame has no document"});
var sel = doc.querySelector(%s);
if (!sel) return JSON.stringify({ok:false,error_code:"` + CodeElementNotFound + `",error_message:"vehicle dropdown not found"});
var wanted = %s;
var match = null;
for (var i = 0; i < sel.options.length; i++) {
  var opt = sel.options[i];
  if (String(opt.text).trim() === wanted) { match = opt; break; }
}
if (!match) return JSON.stringify({ok:false,error_code:"` + CodeElementNotFound + `",error_message:"no dropdown option named " + wanted});
`

// jsSelectVehicle selects the option whose visible text equals name and
// fires the change event the page listens for.
func jsSelectVehicle(frameSel, selectSel, name string) string {
	return wrapJSEval(fmt.Sprintf(jsFrameSelect+`
sel.value = match.value;
match.selected = true;
sel.dispatchEvent(new Event("change", {bubbles:true}));
return JSON.stringify({ok:true,data:String(match.value)});
`, jsString(frameSel), jsString(selectSel), jsString(name)))
}

// jsOptionValue reads the value attribute of the option named name.
func jsOptionValue(frameSel, selectSel, name string) string {
	return wrapJSEval(fmt.Sprintf(jsFrameSelect+`
return JSON.stringify({ok:true,data:String(match.getAttribute("value") || "")});
`, jsString(frameSel), jsString(selectSel), jsString(name)))
}

// decodeEnvelope unwraps a script result into out. A failed envelope becomes
// a CodedError carrying the script's code.
func decodeEnvelope(raw string, out any) error {
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return NewError(CodeBrowserUnavailable, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeBrowserUnavailable
		}
		return NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return NewError(CodeBrowserUnavailable, "invalid evaluation data", err)
	}
	return nil
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func wrapJSEval(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeBrowserUnavailable + `",error_message:String(err && err.message || err)});
}
})()`
}
