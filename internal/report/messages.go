package report

const (
	StartKeyword  = "report"
	CancelKeyword = "cancel"
	HelpKeyword   = "help"

	childSafetyCategory = "3"
)

const (
	msgHelp = "Use the `report` command to begin the reporting process.\n" +
		"Use the `cancel` command to cancel the report process.\n"

	msgCancelled = "Report cancelled."

	msgIntake = "Thank you for starting the reporting process. " +
		"Say `help` at any time for more information.\n\n" +
		"Please copy paste the link to the message you want to report.\n" +
		"You can obtain this link by right-clicking the message and clicking `Copy Message Link`."

	msgBadLink         = "I'm sorry, I couldn't read that link. Please try again or say `cancel` to cancel."
	msgUnknownGuild    = "I cannot accept reports of messages from guilds that I'm not in. Please have the guild owner add me to the guild and try again."
	msgMissingChannel  = "It seems this channel was deleted or never existed. Please try again or say `cancel` to cancel."
	msgMissingMessage  = "It seems this message was deleted or never existed. Please try again or say `cancel` to cancel."
	msgLookupFailed    = "I couldn't look up that message right now. Please try again or say `cancel` to cancel."
	msgUnsupportedType = "We have not yet built support for options 1, 2, and 4."

	msgCategories = "What would you like to report? Enter the number of the option you want to select.\n" +
		"1. Harassment\n" +
		"2. Spam\n" +
		"3. Child safety concern\n" +
		"4. Other\n"

	msgConcernTypes = "What kind of child safety concern? Enter the number of the option you want to select.\n" +
		"1. Suspected grooming\n" +
		"2. Sharing inappropriate images\n" +
		"3. Attempts to meet in person\n" +
		"4. Other"

	msgBehaviors = "Can you tell us more about what happened? Enter the number of the option you want to select.\n" +
		"1. They are impersonating someone else's identity.\n" +
		"2. They tried to isolate me from others.\n" +
		"3. They asked for private conversations off this app.\n" +
		"4. They pressured me for sensitive photos.\n" +
		"5. They tried to meet up in person.\n" +
		"6. Other"

	msgAdditionalInfo = "Is there any additional information you would like to provide? If not, say `no`."
	msgBlockPrompt    = "Would you like to block this user now? Enter 'yes' or 'no'."
	msgBlocked        = "You have blocked this user.\n\n"
	msgThanks         = "Thank you for your report. We will review it and take appropriate action. " +
		"No further information is requested from you at this time."
)

var concernTypes = map[string]string{
	"1": "Suspected grooming",
	"2": "Sharing inappropriate images",
	"3": "Attempts to meet in person",
	"4": "Other",
}

var behaviors = map[string]string{
	"1": "They are impersonating someone else's identity.",
	"2": "They tried to isolate me from others.",
	"3": "They asked for private conversations off this app.",
	"4": "They pressured me for sensitive photos.",
	"5": "They tried to meet up in person.",
	"6": "Other",
}

// HelpText is the reply to a bare "help" DM.
func HelpText() string {
	return msgHelp
}
