package quiz

import "errors"

// ErrEmptyQuiz: no se puede puntuar un quiz sin preguntas.
var ErrEmptyQuiz = errors.New("quiz: cannot score a quiz without questions")

// Score devuelve floor(100 * correctas / total). Una pregunta es correcta
// sólo si el conjunto elegido es exactamente el de la clave. Las preguntas
// sin entrada en user cuentan como conjunto vacío; entradas de más se ignoran.
func Score(user, key []IndexSet) (int, error) {
	correct, err := countCorrect(user, key)
	if err != nil {
		return 0, err
	}
	return 100 * correct / len(key), nil
}

func countCorrect(user, key []IndexSet) (int, error) {
	if len(key) == 0 {
		return 0, ErrEmptyQuiz
	}
	correct := 0
	for i, want := range key {
		var got IndexSet
		if i < len(user) {
			got = user[i]
		}
		if got.Equal(want) {
			correct++
		}
	}
	return correct, nil
}
