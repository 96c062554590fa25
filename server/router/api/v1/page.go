package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// TestClientPage handles GET / with a minimal self-contained HTML client for
// exercising the SSE chat endpoint from a browser.
func (s *APIV1Service) TestClientPage(c echo.Context) error {
	return c.HTML(http.StatusOK, testClientHTML)
}

const testClientHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Gateway</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }
        .chat { border: 1px solid #ccc; height: 400px; overflow-y: auto; padding: 10px; margin-bottom: 20px; }
        .message { margin-bottom: 10px; padding: 10px; border-radius: 5px; }
        .user { background-color: #e3f2fd; text-align: right; }
        .assistant { background-color: #f5f5f5; }
        .row { display: flex; gap: 10px; }
        input { flex: 1; padding: 10px; border: 1px solid #ccc; border-radius: 5px; }
        button { padding: 10px 20px; background-color: #2196F3; color: white; border: none; border-radius: 5px; cursor: pointer; }
        .status { margin-bottom: 10px; padding: 5px; border-radius: 3px; background-color: #eee; }
        .status.error { background-color: #ffcdd2; }
    </style>
</head>
<body>
    <h1>Chat Gateway</h1>
    <div id="status" class="status">Not connected</div>
    <div id="chat" class="chat"></div>
    <div class="row">
        <input type="text" id="input" placeholder="Type your message..." />
        <button onclick="send()">Send</button>
    </div>
    <script>
        let conversationId = null;
        let current = null;
        const chat = document.getElementById('chat');
        const status = document.getElementById('status');
        const input = document.getElementById('input');

        function setStatus(text, isError) {
            status.textContent = text;
            status.className = isError ? 'status error' : 'status';
        }

        function addMessage(content, cls) {
            const div = document.createElement('div');
            div.className = 'message ' + cls;
            div.textContent = content;
            chat.appendChild(div);
            chat.scrollTop = chat.scrollHeight;
            return div;
        }

        function handleEvent(ev) {
            if (ev.type === 'connected') {
                conversationId = ev.conversation_id;
                setStatus('Connected');
            } else if (ev.type === 'message') {
                if (!current) current = addMessage('', 'assistant');
                current.textContent += ev.content;
                chat.scrollTop = chat.scrollHeight;
            } else if (ev.type === 'completed') {
                setStatus('Message complete');
                current = null;
            } else if (ev.type === 'error') {
                setStatus('Error: ' + ev.error, true);
                current = null;
            }
        }

        function send() {
            const message = input.value.trim();
            if (!message) return;
            addMessage(message, 'user');
            input.value = '';

            const form = new FormData();
            form.append('message', message);
            if (conversationId) form.append('conversation_id', conversationId);

            fetch('/api/v1/chat', { method: 'POST', body: form })
                .then(resp => {
                    if (!resp.ok) throw new Error('HTTP ' + resp.status);
                    const reader = resp.body.getReader();
                    const decoder = new TextDecoder();
                    let buffer = '';
                    function pump() {
                        return reader.read().then(({ done, value }) => {
                            if (done) return;
                            buffer += decoder.decode(value, { stream: true });
                            const frames = buffer.split('\n\n');
                            buffer = frames.pop();
                            frames.forEach(frame => {
                                frame.split('\n').forEach(line => {
                                    if (line.startsWith('data: ')) {
                                        try { handleEvent(JSON.parse(line.slice(6))); }
                                        catch (e) { console.error('bad event', e); }
                                    }
                                });
                            });
                            return pump();
                        });
                    }
                    return pump();
                })
                .catch(err => setStatus('Error: ' + err.message, true));
        }

        input.addEventListener('keypress', e => { if (e.key === 'Enter') send(); });
    </script>
</body>
</html>
`
