package compose

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoTeacher is shown when a line has no teacher names at all.
const NoTeacher = "преподаватель не указан"

// AbbreviateTeacher turns "Иванов Иван Иванович" into "Иванов И.И.".
// The first token is kept whole; every following token becomes its upper-cased
// initial and a period. A blank name yields NoTeacher.
func AbbreviateTeacher(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return NoTeacher
	}
	var b strings.Builder
	b.WriteString(fields[0])
	if len(fields) > 1 {
		b.WriteByte(' ')
	}
	for _, f := range fields[1:] {
		r, _ := utf8.DecodeRuneInString(f)
		if r == utf8.RuneError {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		b.WriteByte('.')
	}
	return b.String()
}

// joinAnd joins items Russian style: "A", "A и B", "A, B и C".
func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " и " + items[len(items)-1]
	}
}

// attribution renders the teacher part of a line.
func attribution(teachers []string) string {
	switch len(teachers) {
	case 0:
		return NoTeacher
	case 1:
		return "преподаватель " + teachers[0]
	default:
		return "для групп преподавателей " + joinAnd(teachers)
	}
}

var weekdaysRu = [...]string{
	"воскресенье", "понедельник", "вторник", "среду", "четверг", "пятницу", "субботу",
}

var monthsGenitiveRu = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}
