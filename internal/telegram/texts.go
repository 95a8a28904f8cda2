package telegram

// User-facing copy for the command surface. The randomized pools live in the
// embedded content file; only fixed templates belong here.
const (
	welcomeFmt = "👋 Hello %s!\n\n" +
		"Welcome to Mira Alcohol-Free Helper Bot 🍃\n\n" +
		"Commands:\n" +
		"/motivate - daily motivation\n" +
		"/focus - quick grounding\n" +
		"/reward - small reward idea\n" +
		"/status - see your streak\n\n" +
		"If you're struggling, just tell me (e.g. 'Beer 350ml x 5') and I'll support you — no judgment."

	statusFmt    = "✨ You are on a %d day streak. Keep going!"
	noRecordText = "No record yet — send /start to register."

	loggedFmt = "Logged: %s. If you need support, try /focus or /motivate."

	fallbackText = "I didn't understand that. Try /motivate, /focus, /status or tell me if you drank (e.g. 'Beer 350ml x 5')."

	errorText = "Something went wrong on my side. Please try again in a moment."
)
