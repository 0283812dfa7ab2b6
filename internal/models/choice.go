package models

// Choice is one selectable answer to a Question.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"choice_text"`
	Votes      int64  `json:"votes"`
}
