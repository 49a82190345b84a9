package domain

const DefaultSystemPrompt = "Ты — ассистент премиального мехового ателье «FIX FUR by ATARSHCHIKOV». " +
	"Отвечай кратко, уверенно и по делу. Предлагай решения по перешиву, реставрации, уходу."

const DefaultMediaPrompt = "Прокомментируй это изображение/видео с точки зрения мехового ателье."

const WelcomeText = "Добро пожаловать в FIX FUR by ATARSHCHIKOV 🧥\n" +
	"Задайте вопрос о реставрации, перешиве, хранении или уходе за мехом — подскажу лучший вариант."

const HelpText = "Я отвечаю на текстовые вопросы, комментирую фото, видео и документы " +
	"и понимаю голосовые сообщения. Команды: %s"

const UnknownCommandText = "Неизвестная команда. Доступные команды: %s"

const UnsupportedText = "Я понимаю текст, фото, видео, документы и голосовые сообщения. " +
	"Пожалуйста, отправьте вопрос одним из этих способов."

const (
	UpstreamFailedText      = "Извините, временная ошибка: %s"
	MediaFailedText         = "Получил файл. Пока не удалось обработать: %s"
	MediaFetchFailedText    = "Не удалось загрузить файл: %s"
	TranscriptionFailedText = "Не удалось обработать голосовое: %s"
)

const TranscriptReplyText = "Расшифровка: «%s»\n\n%s"
