package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	welcomeText = "Hey! \U0001F44B\n" +
		"Send me a YouTube link and I'll fetch it for you.\n" +
		"You can also upload a .txt file with one link per line.\n" +
		"Files bigger than the chat limit arrive as numbered parts plus a merge tool."

	helpText = "Send one or more YouTube links in a message, or upload a .txt list.\n" +
		"I'll ask whether you want audio or video, fetch everything, and send it back.\n" +
		"Oversized files are split into parts; open the included merge tool next to " +
		"the downloaded parts to rebuild the original file."

	noRefsText    = "❌ No YouTube links found in that message."
	staleText     = "That choice expired. Send the link(s) again."
	busyText      = "Still working on your previous links. Send new ones once that's done."
	cancelledText = "Cancelled. Send a link whenever you're ready."
)

const (
	callbackAudio       = "mode:audio"
	callbackVideo       = "mode:video"
	callbackQualityLow  = "quality:low"
	callbackQualityHigh = "quality:high"
	callbackCancel      = "cancel"
)

func modePromptText(refCount int) string {
	if refCount == 1 {
		return "Found 1 link. What do you want?"
	}
	return fmt.Sprintf("Found %d links. What do you want?", refCount)
}

func modeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("\U0001F3B5 Audio", callbackAudio),
			tgbotapi.NewInlineKeyboardButtonData("\U0001F3AC Video", callbackVideo),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackCancel),
		),
	)
}

func qualityKeyboard(lowHeight, highHeight int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%dp", lowHeight), callbackQualityLow),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%dp", highHeight), callbackQualityHigh),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackCancel),
		),
	)
}
