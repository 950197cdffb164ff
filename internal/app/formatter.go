package app

import (
	"fmt"

	"review_notification_bot/internal/domain/review"
)

const (
	verdictNegative = "К счатью, в работе нашлись ошибки!"
	verdictPositive = "Ну, вроде ок."
)

// BuildNotification renders the chat message for one checked attempt.
// A missing field is reported as a *review.MalformedAttemptError, never defaulted.
func BuildNotification(attempt review.Attempt) (string, error) {
	if attempt.LessonTitle == nil {
		return "", &review.MalformedAttemptError{Field: "lesson_title"}
	}
	if attempt.LessonURL == nil {
		return "", &review.MalformedAttemptError{Field: "lesson_url"}
	}
	if attempt.IsNegative == nil {
		return "", &review.MalformedAttemptError{Field: "is_negative"}
	}

	verdict := verdictPositive
	if *attempt.IsNegative {
		verdict = verdictNegative
	}

	return fmt.Sprintf("Работа \"%s\" проверена.\n%s\nСсылка на урок: %s.", *attempt.LessonTitle, verdict, *attempt.LessonURL), nil
}
