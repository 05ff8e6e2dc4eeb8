// Package credits содержит шлюз допуска run по кредитам организации.
//
// Admit — чистая проверка без побочных эффектов, для ранних ответов
// API. Reserve — атомарное списание через условный UPDATE в хранилище:
// конкурентные запросы не могут увести баланс в минус.
package credits
