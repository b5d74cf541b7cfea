package valueobject

// TextVerdict хранит результат проверки текста оракулом. Либо принят (и тогда
// известен принятый текст), либо отклонён (и тогда известен уточняющий вопрос).
// Создаётся только через AcceptText и RejectText.
type TextVerdict struct {
	accepted bool
	text     string
	prompt   string
}

func AcceptText(text string) TextVerdict {
	return TextVerdict{accepted: true, text: text}
}

func RejectText(prompt string) TextVerdict {
	return TextVerdict{prompt: prompt}
}

// Accepted возвращает принятый текст.
func (v TextVerdict) Accepted() (string, bool) {
	if !v.accepted {
		return "", false
	}
	return v.text, true
}

// Rejected возвращает вопрос, который нужно задать пользователю.
func (v TextVerdict) Rejected() (string, bool) {
	if v.accepted {
		return "", false
	}
	return v.prompt, true
}

// ImageVerdict хранит результат сверки фото с описанием.
type ImageVerdict struct {
	classification *Classification
	prompt         string
}

// AcceptImage принимает фото. Классификация нормализуется ещё раз, чтобы
// принятый вердикт не мог содержать пустых полей.
func AcceptImage(c Classification) ImageVerdict {
	if !c.IsComplete() {
		c = NormalizeClassification(c.raw())
	}
	return ImageVerdict{classification: &c}
}

func RejectImage(prompt string) ImageVerdict {
	return ImageVerdict{prompt: prompt}
}

func (v ImageVerdict) Accepted() (Classification, bool) {
	if v.classification == nil {
		return Classification{}, false
	}
	return *v.classification, true
}

func (v ImageVerdict) Rejected() (string, bool) {
	if v.classification != nil {
		return "", false
	}
	return v.prompt, true
}

func (c Classification) raw() RawClassification {
	category := string(c.Category)
	priority := string(c.Priority)
	department := string(c.Department)
	days := c.ResolutionDays
	return RawClassification{
		Category:       &category,
		Priority:       &priority,
		Department:     &department,
		ResolutionDays: &days,
	}
}
