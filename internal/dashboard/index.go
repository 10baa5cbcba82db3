package dashboard

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const clientScript = `
const out = document.getElementById("status");
const files = document.getElementById("files");
const proto = location.protocol === "https:" ? "wss://" : "ws://";
const socket = new WebSocket(proto + location.host + "/ws");
let nextID = 1;
const pending = new Map();

window.pri = {
  request(event, data) {
    const id = nextID++;
    socket.send(JSON.stringify({ id, event, data }));
    return new Promise((resolve, reject) => {
      pending.set(id, reply => (reply.success ? resolve(reply.data) : reject(reply.data)));
    });
  },
};

socket.onmessage = message => {
  const msg = JSON.parse(message.data);
  if (msg.id && pending.has(msg.id)) {
    pending.get(msg.id)(msg);
    pending.delete(msg.id);
    return;
  }
  if (msg.event === "freshProjectStatus" || msg.event === "initProjectStatus") {
    out.textContent = JSON.stringify(msg.data, null, 2);
  } else if (msg.event === "changeFile") {
    files.textContent = msg.data.path;
  }
};
`

func indexPage(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>`+templ.EscapeString(title)+`</title>
</head>
<body>
<h1>`+templ.EscapeString(title)+`</h1>
<p>Last changed: <code id="files">none</code></p>
<pre id="status">connecting...</pre>
<script>`+clientScript+`</script>
</body>
</html>
`)
		return err
	})
}
